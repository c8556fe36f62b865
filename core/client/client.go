package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codewandler/clstr-client/core/conn"
	"github.com/codewandler/clstr-client/core/handshake"
	"github.com/codewandler/clstr-client/core/keepalive"
	"github.com/codewandler/clstr-client/core/proto"
	"github.com/codewandler/clstr-client/core/routing"
	"github.com/codewandler/clstr-client/core/sf"
	"github.com/codewandler/clstr-client/core/topology"
	"github.com/codewandler/clstr-client/core/transport"
)

type Options struct {
	// Endpoints to connect to, at least one.
	Endpoints []string
	Transport transport.ClientTransport
	Registry  *topology.Registry

	Version    proto.Version
	MinVersion proto.Version
	ClientID   string

	HandshakeTimeout  time.Duration
	HeartbeatInterval time.Duration

	Partitions uint32
	Seed       string

	Log              *slog.Logger
	Metrics          Metrics
	HandshakeMetrics handshake.Metrics
	KeepaliveMetrics keepalive.Metrics
}

type Client struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger

	t          transport.ClientTransport
	hs         *handshake.Handshaker
	ka         *keepalive.Scheduler
	router     *routing.Router
	handshakes *sf.Group[*conn.Context]
	metrics    Metrics
	pingTTL    time.Duration

	// endpoint -> connection, fixed after New
	conns     map[string]*Connection
	endpoints []string

	refreshMu sync.Mutex
	closed    atomic.Bool
}

func New(opts Options) (*Client, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("client: Options.Transport is required")
	}
	endpoints := slices.Compact(slices.Sorted(slices.Values(opts.Endpoints)))
	if len(endpoints) == 0 || endpoints[0] == "" {
		return nil, fmt.Errorf("client: Options.Endpoints must contain non-empty endpoints")
	}

	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = NopMetrics()
	}

	hs, err := handshake.New(handshake.Options{
		Transport:  opts.Transport,
		Registry:   opts.Registry,
		Version:    opts.Version,
		MinVersion: opts.MinVersion,
		ClientID:   opts.ClientID,
		Timeout:    opts.HandshakeTimeout,
		Log:        log,
		Metrics:    opts.HandshakeMetrics,
	})
	if err != nil {
		return nil, err
	}

	pingTTL := opts.HandshakeTimeout
	if pingTTL <= 0 {
		pingTTL = handshake.DefaultTimeout
	}

	c := &Client{
		log: log.With(slog.String("component", "client"), slog.String("client_id", hs.ClientID())),
		t:   opts.Transport,
		hs:  hs,
		ka: keepalive.New(keepalive.Options{
			Interval: opts.HeartbeatInterval,
			Log:      log,
			Metrics:  opts.KeepaliveMetrics,
		}),
		router:     routing.NewRouter(routing.Options{Partitions: opts.Partitions, Seed: opts.Seed}),
		handshakes: sf.New[*conn.Context](),
		metrics:    m,
		pingTTL:    pingTTL,
		conns:      make(map[string]*Connection, len(endpoints)),
		endpoints:  endpoints,
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	for _, ep := range endpoints {
		c.conns[ep] = newConnection(ep)
	}
	return c, nil
}

// ClientID is the id announced in every handshake.
func (c *Client) ClientID() string { return c.hs.ClientID() }

// Connect handshakes with all endpoints concurrently. It fails only if no
// endpoint could be reached.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, ep := range c.endpoints {
		cn := c.conns[ep]
		g.Go(func() error {
			// joins a reconnect of the same endpoint already in flight
			_, shared, err := c.handshakes.Do(ep, func() (*conn.Context, error) {
				return c.connect(ctx, cn)
			})
			if shared {
				c.log.Debug("shared handshake", slog.String("endpoint", ep))
			}
			if err != nil {
				c.log.Warn("connect failed", slog.String("endpoint", ep), slog.Any("error", err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	c.refresh()

	if len(errs) == len(c.endpoints) {
		return fmt.Errorf("client: no endpoint reachable: %w", errors.Join(errs...))
	}
	c.log.Info("connected",
		slog.Int("connected", len(c.endpoints)-len(errs)),
		slog.Int("endpoints", len(c.endpoints)),
	)
	return nil
}

// Reconnect runs a fresh handshake for endpoint and publishes the new
// context. Concurrent calls for the same endpoint share one handshake.
func (c *Client) Reconnect(ctx context.Context, endpoint string) (*conn.Context, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	cn, ok := c.conns[endpoint]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEndpoint, endpoint)
	}

	cc, err := c.handshakes.DoContext(ctx, endpoint, func() (*conn.Context, error) {
		cc, err := c.connect(c.ctx, cn)
		c.metrics.Reconnected(endpoint, err == nil)
		c.refresh()
		return cc, err
	})
	if err != nil {
		return nil, fmt.Errorf("client: reconnect %s: %w", endpoint, err)
	}
	return cc, nil
}

func (c *Client) connect(ctx context.Context, cn *Connection) (*conn.Context, error) {
	cc, err := c.hs.Handshake(ctx, cn.endpoint)
	if err != nil {
		return nil, err
	}

	var (
		kaCtx  context.Context
		cancel context.CancelFunc
	)
	if cc.Version().Supports(proto.FeatureHeartbeat) {
		kaCtx, cancel = context.WithCancel(c.ctx)
	}
	prev, err := cn.publish(cc, c.closed.Load, cancel)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, err
	}
	if prev != nil && !prev.Equal(cc) {
		c.log.Info("connection context changed",
			slog.String("endpoint", cn.endpoint),
			slog.Any("old", prev),
			slog.Any("new", cc),
		)
	}
	if kaCtx != nil {
		go c.keepalive(kaCtx, cn, cc)
	}
	return cc, nil
}

// keepalive runs the heartbeat for cc until it is replaced or fails.
func (c *Client) keepalive(ctx context.Context, cn *Connection, cc *conn.Context) {
	err := c.ka.Run(ctx, cc, c.pinger(cn.endpoint))
	if err == nil {
		return
	}
	// the connection is considered lost, only if nobody replaced cc meanwhile
	if cn.dropIf(cc) {
		c.log.Error("connection lost", slog.String("endpoint", cn.endpoint), slog.Any("error", err))
		c.refresh()
	}
}

func (c *Client) pinger(endpoint string) keepalive.PingFunc {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.pingTTL)
		defer cancel()
		env := transport.Envelope{Endpoint: endpoint, Type: handshake.MsgHeartbeat}
		env.SetHeader(transport.HeaderClientID, c.hs.ClientID())
		_, err := c.t.Request(ctx, env)
		return err
	}
}

// refresh publishes the current contexts to the router.
func (c *Client) refresh() {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	ctxs := make([]*conn.Context, 0, len(c.endpoints))
	for _, ep := range c.endpoints {
		if cc, ok := c.conns[ep].Context(); ok {
			ctxs = append(ctxs, cc)
		}
	}
	c.router.Update(ctxs)
	c.metrics.ConnectionsActive(len(ctxs))
}

// Connection returns the connection for endpoint.
func (c *Client) Connection(endpoint string) (*Connection, bool) {
	cn, ok := c.conns[endpoint]
	return cn, ok
}

// Connections returns all connections ordered by endpoint, connected or not.
func (c *Client) Connections() []*Connection {
	out := make([]*Connection, 0, len(c.endpoints))
	for _, ep := range c.endpoints {
		out = append(out, c.conns[ep])
	}
	return out
}

// Route returns the connection serving key.
func (c *Client) Route(key string, opts ...routing.PickOption) (*Connection, *conn.Context, error) {
	cc, err := c.router.ForKey(key, opts...)
	if err != nil {
		return nil, nil, err
	}
	for _, ep := range c.endpoints {
		cn := c.conns[ep]
		if cur, ok := cn.Context(); ok && cur == cc {
			return cn, cc, nil
		}
	}
	// the router saw a context that has been replaced since
	return nil, nil, fmt.Errorf("%w: node %s", ErrNotConnected, cc.ClusterNode().ID())
}

// Request sends a message to the node owning key. The handler context
// carries the connection context, see conn.FromContext.
func (c *Client) Request(ctx context.Context, key, msgType string, data []byte, opts ...transport.EnvelopeOption) (res []byte, err error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	defer func() {
		c.metrics.RequestCompleted(msgType, err == nil)
	}()

	cn, cc, err := c.Route(key)
	if err != nil {
		return nil, err
	}
	env, err := transport.NewEnvelope(cn.endpoint, msgType, data, opts...)
	if err != nil {
		return nil, err
	}
	env.SetHeader(transport.HeaderClientID, c.hs.ClientID())
	if cc.Version().Supports(proto.FeatureNodeAffinityHeader) {
		env.SetHeader(transport.HeaderNodeID, cc.ClusterNode().ID())
	}
	return c.t.Request(conn.WithContext(ctx, cc), env)
}

// Close stops all heartbeats and drops every connection context. The
// transport is left open.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.cancel()
	for _, ep := range c.endpoints {
		c.conns[ep].down()
	}
	c.refresh()
	c.log.Debug("closed")
	return nil
}
