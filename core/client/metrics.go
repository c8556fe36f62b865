package client

type Metrics interface {
	ConnectionsActive(count int)
	Reconnected(endpoint string, success bool)
	RequestCompleted(msgType string, success bool)
}

type nopMetrics struct{}

func (nopMetrics) ConnectionsActive(int)         {}
func (nopMetrics) Reconnected(string, bool)      {}
func (nopMetrics) RequestCompleted(string, bool) {}

func NopMetrics() Metrics { return nopMetrics{} }
