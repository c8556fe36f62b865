// Package conn holds the outcome of a completed handshake.
//
// A [Context] records the protocol version both peers agreed on, the idle
// timeout declared by the server and the cluster node the connection is
// bound to. It is created once per established connection and never
// changes afterwards; a reconnect yields a new Context which replaces the
// old one in the connection's [Holder].
//
//	cc := conn.New(proto.V(3, 0), 30*time.Second, node)
//	if cc.Version().Supports(proto.FeatureHeartbeat) {
//	    interval := keepalive.HeartbeatInterval(cfg, cc.IdleTimeout())
//	    ...
//	}
//
// A Context holds no resources and is safe for concurrent use.
package conn
