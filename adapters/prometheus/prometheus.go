// Package prometheus implements the handshake, keepalive and client
// metrics interfaces with Prometheus collectors.
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/clstr-client/core/metrics"
)

type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) metrics.Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

func boolToStr(b bool) string { return strconv.FormatBool(b) }

// AllMetrics bundles the collectors of every component.
type AllMetrics struct {
	Handshake *handshakeMetrics
	Keepalive *keepaliveMetrics
	Client    *clientMetrics
}

func NewAllMetrics(reg prometheus.Registerer) *AllMetrics {
	return &AllMetrics{
		Handshake: NewHandshakeMetrics(reg).(*handshakeMetrics),
		Keepalive: NewKeepaliveMetrics(reg).(*keepaliveMetrics),
		Client:    NewClientMetrics(reg).(*clientMetrics),
	}
}
