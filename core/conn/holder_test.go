package conn

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/clstr-client/core/proto"
	"github.com/codewandler/clstr-client/core/topology"
)

func TestHolder(t *testing.T) {
	var h Holder

	_, ok := h.Load()
	require.False(t, ok)

	first := New(proto.V(3, 0), 30*time.Second, topology.NewNode("n1", "node-1", "10.0.0.1"))
	require.Nil(t, h.Publish(first))

	got, ok := h.Load()
	require.True(t, ok)
	require.Same(t, first, got)

	// reconnect replaces, the old value stays intact
	second := New(proto.V(3, 1), 0, topology.NewNode("n2", "node-2", "10.0.0.2"))
	require.Same(t, first, h.Publish(second))
	require.Equal(t, proto.V(3, 0), first.Version())

	got, _ = h.Load()
	require.Same(t, second, got)

	require.Same(t, second, h.Clear())
	_, ok = h.Load()
	require.False(t, ok)

	require.Panics(t, func() { h.Publish(nil) })
}

func TestHolder_ClearIf(t *testing.T) {
	var h Holder
	node := topology.NewNode("n1", "node-1", "10.0.0.1")
	old := New(proto.V(3, 0), 0, node)
	cur := New(proto.V(3, 0), 0, node)

	h.Publish(old)
	h.Publish(cur)

	// a stale context must not take down its replacement
	require.False(t, h.ClearIf(old))
	got, ok := h.Load()
	require.True(t, ok)
	require.Same(t, cur, got)

	require.True(t, h.ClearIf(cur))
	_, ok = h.Load()
	require.False(t, ok)
	require.False(t, h.ClearIf(nil))
}

func TestHolder_SafePublication(t *testing.T) {
	var (
		h    Holder
		wg   sync.WaitGroup
		node = topology.NewNode("n1", "node-1", "10.0.0.1")
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			h.Publish(New(proto.V(3, uint16(i%2)), time.Duration(i)*time.Millisecond, node))
		}
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if cc, ok := h.Load(); ok {
					// a published context is always complete
					assert.NotNil(t, cc.ClusterNode())
					assert.Equal(t, "n1", cc.ClusterNode().ID())
				}
			}
		}()
	}
	wg.Wait()
}
