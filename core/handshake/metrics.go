package handshake

import "github.com/codewandler/clstr-client/core/metrics"

// Metrics instruments handshakes. Results: ok, version_mismatch, timeout,
// invalid_response, rejected, transport, canceled.
type Metrics interface {
	HandshakeDuration() metrics.Timer
	HandshakeCompleted(result string)
	VersionNegotiated(version string)
}

type nopMetrics struct{}

func (nopMetrics) HandshakeDuration() metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) HandshakeCompleted(string)        {}
func (nopMetrics) VersionNegotiated(string)         {}

func NopMetrics() Metrics { return nopMetrics{} }
