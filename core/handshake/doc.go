// Package handshake negotiates a connection with a cluster node and
// produces its [conn.Context].
//
// The client sends a [Request] announcing the version range it speaks; the
// node answers with a [Response] carrying the agreed version, its idle
// timeout and its identity. [Handshaker.Handshake] turns a successful
// response into a conn.Context and never returns one on failure:
//
//	h, err := handshake.New(handshake.Options{Transport: t, Registry: reg})
//	cc, err := h.Handshake(ctx, "node-1")
//	if errors.Is(err, handshake.ErrVersionMismatch) {
//	    // node speaks an incompatible protocol
//	}
//
// [Accept] implements the node side of the negotiation.
package handshake
