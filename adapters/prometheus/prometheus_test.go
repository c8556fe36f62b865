package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherNames(t *testing.T, reg *prometheus.Registry) map[string]bool {
	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	return names
}

func TestNewHandshakeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHandshakeMetrics(reg)
	require.NotNil(t, m)

	timer := m.HandshakeDuration()
	assert.NotNil(t, timer)
	timer.ObserveDuration()

	m.HandshakeCompleted("ok")
	m.HandshakeCompleted("ok")
	m.HandshakeCompleted("timeout")
	m.VersionNegotiated("3.1")

	hm := m.(*handshakeMetrics)
	assert.Equal(t, 2.0, testutil.ToFloat64(hm.total.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(hm.negotiated.WithLabelValues("3.1")))

	names := gatherNames(t, reg)
	assert.True(t, names["clstr_handshake_duration_seconds"])
	assert.True(t, names["clstr_handshakes_total"])
	assert.True(t, names["clstr_handshake_negotiated_versions_total"])
}

func TestNewKeepaliveMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewKeepaliveMetrics(reg)

	m.HeartbeatSent(true)
	m.HeartbeatSent(false)
	m.HeartbeatInterval("node-1", 10*time.Second)

	km := m.(*keepaliveMetrics)
	assert.Equal(t, 10.0, testutil.ToFloat64(km.interval.WithLabelValues("node-1")))

	names := gatherNames(t, reg)
	assert.True(t, names["clstr_heartbeats_total"])
	assert.True(t, names["clstr_heartbeat_interval_seconds"])
}

func TestNewClientMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClientMetrics(reg)

	m.ConnectionsActive(3)
	m.Reconnected("node-1", true)
	m.RequestCompleted("get_user", false)

	cm := m.(*clientMetrics)
	assert.Equal(t, 3.0, testutil.ToFloat64(cm.active))

	names := gatherNames(t, reg)
	assert.True(t, names["clstr_client_connections_active"])
	assert.True(t, names["clstr_client_reconnects_total"])
	assert.True(t, names["clstr_client_requests_total"])
}

func TestNewAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	all := NewAllMetrics(reg)
	require.NotNil(t, all.Handshake)
	require.NotNil(t, all.Keepalive)
	require.NotNil(t, all.Client)

	// registering twice panics on duplicate collectors
	require.Panics(t, func() { NewAllMetrics(reg) })
}
