package keepalive

import "time"

type Metrics interface {
	HeartbeatSent(success bool)
	HeartbeatInterval(nodeID string, interval time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) HeartbeatSent(bool)                      {}
func (nopMetrics) HeartbeatInterval(string, time.Duration) {}

func NopMetrics() Metrics { return nopMetrics{} }
