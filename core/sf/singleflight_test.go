package sf

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroup_Do(t *testing.T) {
	g := New[*int]()

	var (
		calls   atomic.Int32
		release = make(chan struct{})
		wg      sync.WaitGroup
	)
	fn := func() (*int, error) {
		calls.Add(1)
		<-release
		v := 42
		return &v, nil
	}

	results := make([]*int, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := g.Do("ep-1", fn)
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		require.Same(t, results[0], v)
	}
}

func TestGroup_Error(t *testing.T) {
	g := New[*int]()
	v, _, err := g.Do("k", func() (*int, error) { return nil, errors.New("boom") })
	require.ErrorContains(t, err, "boom")
	require.Nil(t, v)
}

func TestGroup_DoContext(t *testing.T) {
	g := New[string]()
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err := g.DoContext(ctx, "k", func() (string, error) {
		<-release
		return "late", nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	v, err := g.DoContext(t.Context(), "other", func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	require.Equal(t, "ok", v)
}
