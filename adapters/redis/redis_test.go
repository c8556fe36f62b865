package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/clstr-client/core/topology"
	"github.com/codewandler/clstr-client/ports/kv"
)

func TestStore(t *testing.T) {
	s, err := New(Config{Addr: NewTestContainer(t), KeyPrefix: "test:"})
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()
	require.NoError(t, s.Ping(t.Context()))

	ctx := t.Context()

	t.Run("put get delete", func(t *testing.T) {
		_, err := s.Get(ctx, "a")
		require.ErrorIs(t, err, kv.ErrNotFound)

		require.NoError(t, s.Put(ctx, "a", kv.Entry{Data: []byte("1"), Meta: map[string]any{"k": "v"}}, kv.PutOptions{}))
		e, err := s.Get(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, []byte("1"), e.Data)
		require.Equal(t, "v", e.Meta["k"])

		require.NoError(t, s.Delete(ctx, "a"))
		require.NoError(t, s.Delete(ctx, "a"))
		_, err = s.Get(ctx, "a")
		require.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("key required", func(t *testing.T) {
		require.ErrorIs(t, s.Put(ctx, "", kv.Entry{}, kv.PutOptions{}), kv.ErrKeyRequired)
	})

	t.Run("ttl", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "short", kv.Entry{Data: []byte("x")}, kv.PutOptions{TTL: 100 * time.Millisecond}))
		require.Eventually(t, func() bool {
			_, err := s.Get(ctx, "short")
			return err == kv.ErrNotFound
		}, 5*time.Second, 50*time.Millisecond)
	})

	t.Run("typed helpers", func(t *testing.T) {
		type doc struct {
			Name string `json:"name"`
		}
		require.NoError(t, kv.Put(ctx, s, "doc", doc{Name: "n"}, kv.PutOptions{}))
		d, err := kv.Get[doc](ctx, s, "doc")
		require.NoError(t, err)
		require.Equal(t, "n", d.Name)
	})

	t.Run("registry", func(t *testing.T) {
		r1 := topology.NewRegistry(topology.RegistryOptions{Store: s})
		_, err := r1.Resolve(ctx, "n1", "node-1", "10.0.0.1:10800")
		require.NoError(t, err)

		r2 := topology.NewRegistry(topology.RegistryOptions{Store: s})
		n, err := r2.Lookup(ctx, "n1")
		require.NoError(t, err)
		require.Equal(t, "node-1", n.Name())
	})
}

func TestNew_RequiresClientOrAddr(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}
