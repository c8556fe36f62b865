// Package metrics holds the backend-agnostic instruments shared by the
// per-component metrics interfaces (handshake, keepalive, client).
// adapters/prometheus implements them.
package metrics

// Timer measures an operation. Call ObserveDuration when it completes:
//
//	defer m.HandshakeDuration().ObserveDuration()
type Timer interface {
	ObserveDuration()
}
