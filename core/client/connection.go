package client

import (
	"context"
	"fmt"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/codewandler/clstr-client/core/conn"
)

// Connection is the client's link to one endpoint. Its context is replaced
// on every successful reconnect.
type Connection struct {
	id       string
	endpoint string
	holder   conn.Holder

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newConnection(endpoint string) *Connection {
	return &Connection{
		id:       fmt.Sprintf("conn-%s", gonanoid.Must(8)),
		endpoint: endpoint,
	}
}

func (c *Connection) ID() string       { return c.id }
func (c *Connection) Endpoint() string { return c.endpoint }

// Context returns the current connection context, ok is false while the
// connection is down.
func (c *Connection) Context() (*conn.Context, bool) { return c.holder.Load() }

// publish makes cc the current context and hands the connection to the
// heartbeat loop stopped by cancel, replacing the previous loop. Both happen
// under c.mu, so the published context and the running loop always match.
// It fails with ErrClosed once isClosed reports true.
func (c *Connection) publish(cc *conn.Context, isClosed func() bool, cancel context.CancelFunc) (prev *conn.Context, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if isClosed() {
		return nil, ErrClosed
	}
	prev = c.holder.Publish(cc)
	c.swapKeepalive(cancel)
	return prev, nil
}

// dropIf takes the connection down if cc is still its current context.
func (c *Connection) dropIf(cc *conn.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.holder.ClearIf(cc) {
		return false
	}
	c.swapKeepalive(nil)
	return true
}

func (c *Connection) down() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.swapKeepalive(nil)
	c.holder.Clear()
}

// swapKeepalive must be called with c.mu held.
func (c *Connection) swapKeepalive(cancel context.CancelFunc) {
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
}
