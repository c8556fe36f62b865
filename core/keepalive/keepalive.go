// Package keepalive sends heartbeats often enough that a node never sees a
// connection idle for longer than the timeout it declared in the handshake.
package keepalive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codewandler/clstr-client/core/conn"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	// MinRecommendedHeartbeatInterval bounds the interval derived from very
	// short idle timeouts.
	MinRecommendedHeartbeatInterval = 500 * time.Millisecond
)

var ErrHeartbeatFailed = errors.New("heartbeat failed")

// HeartbeatInterval picks the interval for a connection. Without a server
// idle timeout the configured interval is used as is; otherwise the
// interval is capped to a third of the idle timeout.
func HeartbeatInterval(configured, serverIdleTimeout time.Duration) time.Duration {
	if configured <= 0 {
		configured = DefaultHeartbeatInterval
	}
	if serverIdleTimeout <= 0 {
		return configured
	}
	recommended := max(serverIdleTimeout/3, MinRecommendedHeartbeatInterval)
	return min(configured, recommended)
}

// PingFunc sends a single heartbeat.
type PingFunc func(ctx context.Context) error

type Options struct {
	// Interval is the configured heartbeat interval, see HeartbeatInterval.
	Interval time.Duration
	Log      *slog.Logger
	Metrics  Metrics
}

type Scheduler struct {
	interval time.Duration
	log      *slog.Logger
	metrics  Metrics
}

func New(opts Options) *Scheduler {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = NopMetrics()
	}
	return &Scheduler{
		interval: opts.Interval,
		log:      log.With(slog.String("component", "keepalive")),
		metrics:  m,
	}
}

// Run pings until ctx is done or a ping fails. It returns nil on
// cancellation and an error wrapping ErrHeartbeatFailed otherwise.
func (s *Scheduler) Run(ctx context.Context, cc *conn.Context, ping PingFunc) error {
	interval := HeartbeatInterval(s.interval, cc.IdleTimeout())
	nodeID := cc.ClusterNode().ID()
	log := s.log.With(slog.String("node", nodeID))

	if s.interval > interval {
		log.Warn(
			"configured heartbeat interval exceeds recommended interval",
			slog.Duration("configured", s.interval),
			slog.Duration("interval", interval),
			slog.Duration("idle_timeout", cc.IdleTimeout()),
		)
	}
	log.Debug("heartbeat started", slog.Duration("interval", interval))
	s.metrics.HeartbeatInterval(nodeID, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("heartbeat stopped")
			return nil
		case <-ticker.C:
			err := ping(ctx)
			if err != nil && ctx.Err() != nil {
				return nil
			}
			s.metrics.HeartbeatSent(err == nil)
			if err != nil {
				log.Error("heartbeat failed", slog.Any("error", err))
				return fmt.Errorf("%w: node %s: %w", ErrHeartbeatFailed, nodeID, err)
			}
		}
	}
}
