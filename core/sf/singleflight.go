// Package sf deduplicates concurrent calls with the same key: only the
// first caller runs the function, the others wait for its result. The
// client uses it so concurrent connects and reconnects of one endpoint
// share a single handshake.
package sf

import (
	"context"

	"golang.org/x/sync/singleflight"
)

type Group[T any] struct {
	group singleflight.Group
}

func New[T any]() *Group[T] {
	return &Group[T]{}
}

// Do runs fn once per key at a time. shared reports whether the result was
// handed to more than one caller.
func (g *Group[T]) Do(key string, fn func() (T, error)) (v T, shared bool, err error) {
	out, err, shared := g.group.Do(key, func() (any, error) {
		return fn()
	})
	if out != nil {
		v = out.(T)
	}
	return v, shared, err
}

// DoContext is like Do but stops waiting when ctx is done. The in-flight
// call keeps running for the other callers.
func (g *Group[T]) DoContext(ctx context.Context, key string, fn func() (T, error)) (v T, err error) {
	ch := g.group.DoChan(key, func() (any, error) {
		return fn()
	})
	select {
	case <-ctx.Done():
		return v, ctx.Err()
	case res := <-ch:
		if res.Val != nil {
			v = res.Val.(T)
		}
		return v, res.Err
	}
}
