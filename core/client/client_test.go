package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/clstr-client/core/conn"
	"github.com/codewandler/clstr-client/core/handshake"
	"github.com/codewandler/clstr-client/core/proto"
	"github.com/codewandler/clstr-client/core/server"
	"github.com/codewandler/clstr-client/core/topology"
	"github.com/codewandler/clstr-client/core/transport"
)

func newClient(t *testing.T, opts Options) *Client {
	c, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, c.Close()) })
	return c
}

func TestNew(t *testing.T) {
	_, err := New(Options{Endpoints: []string{"n1"}})
	require.ErrorContains(t, err, "Options.Transport is required")

	_, err = New(Options{Transport: transport.NewInMemoryTransport()})
	require.ErrorContains(t, err, "Options.Endpoints")

	_, err = New(Options{Transport: transport.NewInMemoryTransport(), Endpoints: []string{""}})
	require.ErrorContains(t, err, "Options.Endpoints")

	c, err := New(Options{Transport: transport.NewInMemoryTransport(), Endpoints: []string{"b", "a", "b"}})
	require.NoError(t, err)
	require.Len(t, c.Connections(), 2)
	require.Equal(t, "a", c.Connections()[0].Endpoint())
}

func TestClient_Connect(t *testing.T) {
	tr := transport.CreateInMemoryTransport(t)
	ids := server.CreateTestNodes(t, tr, 3, proto.V(3, 1), 30*time.Second, nil)

	registry := topology.NewRegistry(topology.RegistryOptions{})
	c := newClient(t, Options{Endpoints: ids, Transport: tr, Registry: registry})
	require.NoError(t, c.Connect(t.Context()))

	for i, cn := range c.Connections() {
		cc, ok := cn.Context()
		require.True(t, ok)
		require.Equal(t, proto.V(3, 1), cc.Version())
		require.Equal(t, 30*time.Second, cc.IdleTimeout())
		require.Equal(t, fmt.Sprintf("node-%d", i), cc.ClusterNode().ID())

		n, ok := registry.Get(cc.ClusterNode().ID())
		require.True(t, ok)
		require.Same(t, n, cc.ClusterNode())
	}
}

func TestClient_Connect_Partial(t *testing.T) {
	tr := transport.CreateInMemoryTransport(t)
	ids := server.CreateTestNodes(t, tr, 1, proto.Current, 0, nil)

	c := newClient(t, Options{Endpoints: append(ids, "missing"), Transport: tr})
	require.NoError(t, c.Connect(t.Context()))

	cn, ok := c.Connection("missing")
	require.True(t, ok)
	_, ok = cn.Context()
	require.False(t, ok)

	cn, _ = c.Connection("node-0")
	cc, ok := cn.Context()
	require.True(t, ok)
	require.False(t, cc.HasIdleTimeout())
}

func TestClient_Connect_NoneReachable(t *testing.T) {
	tr := transport.CreateInMemoryTransport(t)

	c := newClient(t, Options{Endpoints: []string{"a", "b"}, Transport: tr})
	err := c.Connect(t.Context())
	require.ErrorContains(t, err, "no endpoint reachable")
	require.ErrorIs(t, err, transport.ErrNoEndpoint)
}

func TestClient_Connect_VersionMismatch(t *testing.T) {
	tr := transport.CreateInMemoryTransport(t)
	s := server.New(server.Options{NodeID: "n1", Version: proto.V(4, 0), MinVersion: proto.V(4, 0), Transport: tr})
	require.NoError(t, s.Run(t.Context()))

	c := newClient(t, Options{Endpoints: []string{"n1"}, Transport: tr})
	require.ErrorIs(t, c.Connect(t.Context()), handshake.ErrVersionMismatch)
}

func TestClient_Request(t *testing.T) {
	type seen struct {
		endpoint string
		nodeHdr  string
		clientID string
	}
	var (
		mu    sync.Mutex
		calls []seen
	)
	handler := func(ctx context.Context, env transport.Envelope) ([]byte, error) {
		nodeHdr, _ := env.GetHeader(transport.HeaderNodeID)
		clientID, _ := env.GetHeader(transport.HeaderClientID)
		mu.Lock()
		calls = append(calls, seen{endpoint: env.Endpoint, nodeHdr: nodeHdr, clientID: clientID})
		mu.Unlock()
		return []byte(env.Endpoint), nil
	}

	tr := transport.CreateInMemoryTransport(t)
	ids := server.CreateTestNodes(t, tr, 3, proto.V(3, 1), 0, handler)

	c := newClient(t, Options{Endpoints: ids, Transport: tr, Seed: "test"})
	require.NoError(t, c.Connect(t.Context()))

	for i := 0; i < 30; i++ {
		key := fmt.Sprintf("user:%d", i)
		cn, cc, err := c.Route(key)
		require.NoError(t, err)

		res, err := c.Request(t.Context(), key, "get_user", []byte("{}"))
		require.NoError(t, err)
		require.Equal(t, cn.Endpoint(), string(res))
		require.Equal(t, cn.Endpoint(), cc.ClusterNode().ID())
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 30)
	for _, s := range calls {
		require.Equal(t, s.endpoint, s.nodeHdr)
		require.Equal(t, c.ClientID(), s.clientID)
	}
}

func TestClient_Request_NoAffinityHeaderOnOldProtocol(t *testing.T) {
	tr := transport.CreateInMemoryTransport(t)
	ids := server.CreateTestNodes(t, tr, 1, proto.V(3, 0), 0, func(ctx context.Context, env transport.Envelope) ([]byte, error) {
		if _, ok := env.GetHeader(transport.HeaderNodeID); ok {
			return nil, errors.New("unexpected node header")
		}
		return nil, nil
	})

	c := newClient(t, Options{Endpoints: ids, Transport: tr})
	require.NoError(t, c.Connect(t.Context()))

	_, err := c.Request(t.Context(), "k", "noop", nil)
	require.NoError(t, err)

	_, err = c.Request(t.Context(), "k", "noop", nil, transport.WithHeader(transport.HeaderNodeID, "x"))
	require.ErrorIs(t, err, transport.ErrReservedHeader)
}

func TestClient_Reconnect(t *testing.T) {
	tr := transport.CreateInMemoryTransport(t)

	serveCtx, stop := context.WithCancel(t.Context())
	s := server.New(server.Options{NodeID: "n1", Addr: "10.0.0.1", Version: proto.V(3, 1), IdleTimeout: 30 * time.Second, Transport: tr})
	require.NoError(t, s.Run(serveCtx))

	c := newClient(t, Options{Endpoints: []string{"n1"}, Transport: tr})
	require.NoError(t, c.Connect(t.Context()))

	cn, _ := c.Connection("n1")
	before, ok := cn.Context()
	require.True(t, ok)

	// the node comes back with different settings
	stop()
	require.Eventually(t, func() bool {
		s := server.New(server.Options{NodeID: "n1", Addr: "10.0.0.9", Version: proto.V(3, 0), Transport: tr})
		return s.Run(t.Context()) == nil
	}, time.Second, 10*time.Millisecond)

	after, err := c.Reconnect(t.Context(), "n1")
	require.NoError(t, err)
	require.NotSame(t, before, after)
	require.False(t, before.Equal(after))

	// the old context is untouched, the connection publishes the new one
	require.Equal(t, proto.V(3, 1), before.Version())
	require.Equal(t, 30*time.Second, before.IdleTimeout())
	require.Equal(t, "10.0.0.1", before.ClusterNode().Addr())

	current, ok := cn.Context()
	require.True(t, ok)
	require.Same(t, after, current)
	require.Equal(t, proto.V(3, 0), current.Version())
	require.Equal(t, time.Duration(0), current.IdleTimeout())
	require.Equal(t, "10.0.0.9", current.ClusterNode().Addr())

	routed, routedCC, err := c.Route("k")
	require.NoError(t, err)
	require.Same(t, cn, routed)
	require.Same(t, after, routedCC)

	_, err = c.Reconnect(t.Context(), "nope")
	require.ErrorIs(t, err, ErrUnknownEndpoint)
}

func TestClient_Reconnect_Concurrent(t *testing.T) {
	tr := transport.CreateInMemoryTransport(t)
	ids := server.CreateTestNodes(t, tr, 1, proto.Current, 0, nil)

	c := newClient(t, Options{Endpoints: ids, Transport: tr})
	require.NoError(t, c.Connect(t.Context()))

	var (
		wg      sync.WaitGroup
		results = make([]*conn.Context, 8)
		errs    = make([]error, 8)
	)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.Reconnect(t.Context(), "node-0")
		}()
	}
	wg.Wait()

	cn, _ := c.Connection("node-0")
	current, ok := cn.Context()
	require.True(t, ok)
	for i := range results {
		require.NoError(t, errs[i])
		require.True(t, current.Equal(results[i]))
	}
}

func TestClient_ConnectAndReconnect_KeepaliveFollowsCurrentContext(t *testing.T) {
	tr := transport.CreateInMemoryTransport(t)
	ids := server.CreateTestNodes(t, tr, 1, proto.Current, 0, nil)

	hb := &heartbeatSwitch{ClientTransport: tr}
	c := newClient(t, Options{Endpoints: ids, Transport: hb, HeartbeatInterval: 10 * time.Millisecond})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Connect(t.Context()))
		}()
		go func() {
			defer wg.Done()
			_, err := c.Reconnect(t.Context(), "node-0")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cn, _ := c.Connection("node-0")
	_, ok := cn.Context()
	require.True(t, ok)

	// whichever context won, its heartbeat must be the one running
	hb.fail.Store(true)
	require.Eventually(t, func() bool {
		_, ok := cn.Context()
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestClient_CloseDuringConnect(t *testing.T) {
	tr := transport.CreateInMemoryTransport(t)
	ids := server.CreateTestNodes(t, tr, 1, proto.Current, 0, nil)

	c, err := New(Options{Endpoints: ids, Transport: tr})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Connect(t.Context())
		}()
	}
	require.NoError(t, c.Close())
	wg.Wait()

	cn, _ := c.Connection("node-0")
	_, ok := cn.Context()
	require.False(t, ok)
}

// heartbeatSwitch fails heartbeats once fail is set.
type heartbeatSwitch struct {
	transport.ClientTransport
	fail atomic.Bool
}

func (h *heartbeatSwitch) Request(ctx context.Context, env transport.Envelope) ([]byte, error) {
	if env.Type == handshake.MsgHeartbeat && h.fail.Load() {
		return nil, errors.New("heartbeat refused")
	}
	return h.ClientTransport.Request(ctx, env)
}

func TestClient_HeartbeatFailureDropsConnection(t *testing.T) {
	tr := transport.CreateInMemoryTransport(t)

	serveCtx, stop := context.WithCancel(t.Context())
	s := server.New(server.Options{NodeID: "n1", Transport: tr})
	require.NoError(t, s.Run(serveCtx))

	c := newClient(t, Options{Endpoints: []string{"n1"}, Transport: tr, HeartbeatInterval: 10 * time.Millisecond})
	require.NoError(t, c.Connect(t.Context()))

	cn, _ := c.Connection("n1")
	_, ok := cn.Context()
	require.True(t, ok)

	stop()
	require.Eventually(t, func() bool {
		_, ok := cn.Context()
		return !ok
	}, time.Second, 10*time.Millisecond)

	_, err := c.Request(t.Context(), "k", "noop", nil)
	require.Error(t, err)
}

func TestClient_Close(t *testing.T) {
	tr := transport.CreateInMemoryTransport(t)
	ids := server.CreateTestNodes(t, tr, 2, proto.Current, time.Minute, nil)

	c, err := New(Options{Endpoints: ids, Transport: tr})
	require.NoError(t, err)
	require.NoError(t, c.Connect(t.Context()))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	for _, cn := range c.Connections() {
		_, ok := cn.Context()
		require.False(t, ok)
	}
	_, err = c.Request(t.Context(), "k", "noop", nil)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, c.Connect(t.Context()), ErrClosed)
	_, err = c.Reconnect(t.Context(), ids[0])
	require.ErrorIs(t, err, ErrClosed)
}

func TestClient_RequestCarriesConnContext(t *testing.T) {
	// the request context never leaves the client, capture it in the transport
	tr := transport.CreateInMemoryTransport(t)
	ids := server.CreateTestNodes(t, tr, 1, proto.Current, 0, func(ctx context.Context, env transport.Envelope) ([]byte, error) {
		return nil, nil
	})

	spy := &ctxSpy{ClientTransport: tr}
	c := newClient(t, Options{Endpoints: ids, Transport: spy})
	require.NoError(t, c.Connect(t.Context()))

	_, err := c.Request(t.Context(), "k", "noop", nil)
	require.NoError(t, err)

	cc, ok := conn.FromContext(spy.last)
	require.True(t, ok)
	require.Equal(t, "node-0", cc.ClusterNode().ID())
}

type ctxSpy struct {
	transport.ClientTransport
	mu   sync.Mutex
	last context.Context
}

func (s *ctxSpy) Request(ctx context.Context, env transport.Envelope) ([]byte, error) {
	if env.Type != handshake.MsgHandshake && env.Type != handshake.MsgHeartbeat {
		s.mu.Lock()
		s.last = ctx
		s.mu.Unlock()
	}
	return s.ClientTransport.Request(ctx, env)
}
