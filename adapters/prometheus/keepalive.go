package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/clstr-client/core/keepalive"
)

type keepaliveMetrics struct {
	sent     *prometheus.CounterVec
	interval *prometheus.GaugeVec
}

func NewKeepaliveMetrics(reg prometheus.Registerer) keepalive.Metrics {
	m := &keepaliveMetrics{
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clstr_heartbeats_total",
			Help: "Total number of heartbeats sent",
		}, []string{"success"}),
		interval: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clstr_heartbeat_interval_seconds",
			Help: "Heartbeat interval in use per node",
		}, []string{"node_id"}),
	}
	reg.MustRegister(m.sent, m.interval)
	return m
}

func (m *keepaliveMetrics) HeartbeatSent(success bool) {
	m.sent.WithLabelValues(boolToStr(success)).Inc()
}

func (m *keepaliveMetrics) HeartbeatInterval(nodeID string, interval time.Duration) {
	m.interval.WithLabelValues(nodeID).Set(interval.Seconds())
}

var _ keepalive.Metrics = (*keepaliveMetrics)(nil)
