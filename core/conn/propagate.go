package conn

import "context"

type ctxKey struct{}

// WithContext attaches cc to ctx for handlers further down the call chain.
func WithContext(ctx context.Context, cc *Context) context.Context {
	if cc == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, cc)
}

// FromContext returns the connection context attached to ctx.
func FromContext(ctx context.Context) (*Context, bool) {
	if ctx == nil {
		return nil, false
	}
	cc, ok := ctx.Value(ctxKey{}).(*Context)
	return cc, ok
}
