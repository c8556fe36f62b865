package conn

import "sync/atomic"

// Holder publishes the current Context of a connection. Readers never see
// a partially built value; a reconnect swaps in a fresh Context.
type Holder struct {
	p atomic.Pointer[Context]
}

// Load returns the current context, ok is false before the first handshake
// completed or after Clear.
func (h *Holder) Load() (cc *Context, ok bool) {
	cc = h.p.Load()
	return cc, cc != nil
}

// Publish makes cc the current context and returns the one it replaced.
func (h *Holder) Publish(cc *Context) (prev *Context) {
	if cc == nil {
		panic("conn: cannot publish nil context")
	}
	return h.p.Swap(cc)
}

// Clear drops the current context, e.g. when the connection is torn down.
func (h *Holder) Clear() (prev *Context) {
	return h.p.Swap(nil)
}

// ClearIf drops the current context only if it is still cc. It reports
// whether it did.
func (h *Holder) ClearIf(cc *Context) bool {
	return cc != nil && h.p.CompareAndSwap(cc, nil)
}
