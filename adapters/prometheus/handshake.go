package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/clstr-client/core/handshake"
	"github.com/codewandler/clstr-client/core/metrics"
)

type handshakeMetrics struct {
	duration   prometheus.Histogram
	total      *prometheus.CounterVec
	negotiated *prometheus.CounterVec
}

func NewHandshakeMetrics(reg prometheus.Registerer) handshake.Metrics {
	m := &handshakeMetrics{
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "clstr_handshake_duration_seconds",
			Help:    "Handshake latency in seconds",
			Buckets: defaultBuckets,
		}),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clstr_handshakes_total",
			Help: "Total number of handshakes by result",
		}, []string{"result"}),
		negotiated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clstr_handshake_negotiated_versions_total",
			Help: "Protocol versions agreed on in successful handshakes",
		}, []string{"version"}),
	}
	reg.MustRegister(m.duration, m.total, m.negotiated)
	return m
}

func (m *handshakeMetrics) HandshakeDuration() metrics.Timer { return newTimer(m.duration) }

func (m *handshakeMetrics) HandshakeCompleted(result string) {
	m.total.WithLabelValues(result).Inc()
}

func (m *handshakeMetrics) VersionNegotiated(version string) {
	m.negotiated.WithLabelValues(version).Inc()
}

var _ handshake.Metrics = (*handshakeMetrics)(nil)
