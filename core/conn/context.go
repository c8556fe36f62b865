package conn

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/codewandler/clstr-client/core/proto"
	"github.com/codewandler/clstr-client/core/topology"
)

// Context is the immutable result of a successful handshake.
type Context struct {
	version     proto.Version
	idleTimeout time.Duration
	node        *topology.Node
}

// New creates a Context from inputs the handshake already validated.
// It panics if node is nil or has no id.
func New(version proto.Version, idleTimeout time.Duration, node *topology.Node) *Context {
	if node == nil {
		panic("conn: cluster node must not be nil")
	}
	if node.ID() == "" {
		panic("conn: cluster node must have an id")
	}
	return &Context{
		version:     version,
		idleTimeout: idleTimeout,
		node:        node,
	}
}

// Version is the protocol version negotiated for the connection.
func (c *Context) Version() proto.Version { return c.version }

// IdleTimeout is the period the server tolerates without traffic before it
// may close the connection. Zero means the server never closes idle
// connections.
func (c *Context) IdleTimeout() time.Duration { return c.idleTimeout }

// HasIdleTimeout reports whether the server declared an idle timeout.
func (c *Context) HasIdleTimeout() bool { return c.idleTimeout > 0 }

// ClusterNode is the node the connection is bound to. The node is owned by
// the topology registry and must not be retained beyond the connection.
func (c *Context) ClusterNode() *topology.Node { return c.node }

// Equal reports whether both contexts carry the same version, idle timeout
// and node identity.
func (c *Context) Equal(o *Context) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.version == o.version &&
		c.idleTimeout == o.idleTimeout &&
		c.node.Equal(o.node)
}

func (c *Context) String() string {
	if c == nil {
		return "<nil>"
	}
	return fmt.Sprintf("ConnectionContext{version: %s, idleTimeout: %s, clusterNode: %s}", c.version, c.idleTimeout, c.node)
}

func (c *Context) LogValue() slog.Value {
	if c == nil {
		return slog.StringValue("<nil>")
	}
	return slog.GroupValue(
		slog.String("version", c.version.String()),
		slog.Duration("idle_timeout", c.idleTimeout),
		slog.Any("node", c.node),
	)
}
