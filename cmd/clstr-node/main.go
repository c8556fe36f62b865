// Command clstr-node serves one cluster node endpoint over NATS. It answers
// handshakes and heartbeats and replies to "clstr.info" with its identity.
//
// Configuration is read from the environment:
//
//	NATS_URL=nats://127.0.0.1:4222 CLSTR_NODE_ID=node-1 CLSTR_IDLE_TIMEOUT=30s clstr-node
//
// Prometheus metrics are served on CLSTR_METRICS_ADDR (default :2121).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codewandler/clstr-client/adapters/nats"
	"github.com/codewandler/clstr-client/core/proto"
	"github.com/codewandler/clstr-client/core/server"
	"github.com/codewandler/clstr-client/core/transport"
)

const msgInfo = "clstr.info"

type config struct {
	NatsURL       string        `env:"NATS_URL,default=nats://127.0.0.1:4222"`
	SubjectPrefix string        `env:"CLSTR_SUBJECT_PREFIX,default=clstr"`
	NodeID        string        `env:"CLSTR_NODE_ID"`
	NodeName      string        `env:"CLSTR_NODE_NAME"`
	NodeAddr      string        `env:"CLSTR_NODE_ADDR"`
	Version       string        `env:"CLSTR_PROTOCOL_VERSION"`
	IdleTimeout   time.Duration `env:"CLSTR_IDLE_TIMEOUT,default=30s"`
	MetricsAddr   string        `env:"CLSTR_METRICS_ADDR,default=:2121"`
	Debug         bool          `env:"CLSTR_DEBUG,default=false"`
}

type nodeInfo struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var cfg config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		fmt.Fprintf(os.Stderr, "invalid config: %s\n", err)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if err := run(ctx, log, cfg); err != nil {
		log.Error("node failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, cfg config) error {
	version := proto.Current
	if cfg.Version != "" {
		v, err := proto.ParseVersion(cfg.Version)
		if err != nil {
			return err
		}
		version = v
	}

	handled := promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clstr_node_messages_total",
		Help: "Messages handled by the node handler.",
	}, []string{"message_type", "success"})

	promMux := http.NewServeMux()
	promMux.Handle("/metrics", promhttp.Handler())
	promServer := &http.Server{Addr: cfg.MetricsAddr, Handler: promMux}
	go func() {
		log.Info("prometheus metrics server starting", slog.String("addr", cfg.MetricsAddr))
		if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("prometheus server error", slog.Any("error", err))
		}
	}()
	defer promServer.Shutdown(context.Background())

	tr, err := nats.NewTransport(nats.TransportConfig{
		Connect:       nats.ConnectURL(cfg.NatsURL),
		Log:           log,
		SubjectPrefix: cfg.SubjectPrefix,
	})
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}
	defer tr.Close()

	startedAt := time.Now()
	var s *server.Server
	s = server.New(server.Options{
		Log:         log,
		NodeID:      cfg.NodeID,
		NodeName:    cfg.NodeName,
		Addr:        cfg.NodeAddr,
		Version:     version,
		IdleTimeout: cfg.IdleTimeout,
		Transport:   tr,
		Handler: func(ctx context.Context, env transport.Envelope) ([]byte, error) {
			if env.Type != msgInfo {
				handled.WithLabelValues(env.Type, "false").Inc()
				return nil, fmt.Errorf("unsupported message type: %s", env.Type)
			}
			handled.WithLabelValues(env.Type, "true").Inc()
			return json.Marshal(nodeInfo{
				ID:      s.NodeID(),
				Version: version.String(),
				Uptime:  time.Since(startedAt).Truncate(time.Second).String(),
			})
		},
	})
	if err := s.Run(ctx); err != nil {
		return err
	}

	log.Info("node ready", slog.String("node", s.NodeID()), slog.String("nats", cfg.NatsURL))
	<-ctx.Done()
	log.Info("shutting down")
	return nil
}
