package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/clstr-client/core/client"
)

type clientMetrics struct {
	active     prometheus.Gauge
	reconnects *prometheus.CounterVec
	requests   *prometheus.CounterVec
}

func NewClientMetrics(reg prometheus.Registerer) client.Metrics {
	m := &clientMetrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clstr_client_connections_active",
			Help: "Number of connections with a current connection context",
		}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clstr_client_reconnects_total",
			Help: "Total number of reconnects",
		}, []string{"endpoint", "success"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clstr_client_requests_total",
			Help: "Total number of routed requests",
		}, []string{"message_type", "success"}),
	}
	reg.MustRegister(m.active, m.reconnects, m.requests)
	return m
}

func (m *clientMetrics) ConnectionsActive(count int) { m.active.Set(float64(count)) }

func (m *clientMetrics) Reconnected(endpoint string, success bool) {
	m.reconnects.WithLabelValues(endpoint, boolToStr(success)).Inc()
}

func (m *clientMetrics) RequestCompleted(msgType string, success bool) {
	m.requests.WithLabelValues(msgType, boolToStr(success)).Inc()
}

var _ client.Metrics = (*clientMetrics)(nil)
