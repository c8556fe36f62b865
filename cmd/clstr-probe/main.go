// Command clstr-probe connects to cluster node endpoints over NATS and prints
// the negotiated connection context of each.
//
//	NATS_URL=nats://127.0.0.1:4222 CLSTR_ENDPOINTS=node-1,node-2 CLSTR_KEY=user-42 clstr-probe
//
// With CLSTR_WATCH set the probe stays connected for that long, sending
// heartbeats and serving metrics on CLSTR_METRICS_ADDR.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codewandler/clstr-client/adapters/nats"
	promadapter "github.com/codewandler/clstr-client/adapters/prometheus"
	"github.com/codewandler/clstr-client/adapters/redis"
	"github.com/codewandler/clstr-client/core/client"
	"github.com/codewandler/clstr-client/core/topology"
	"github.com/codewandler/clstr-client/ports/kv"
)

type config struct {
	NatsURL           string        `env:"NATS_URL,default=nats://127.0.0.1:4222"`
	SubjectPrefix     string        `env:"CLSTR_SUBJECT_PREFIX,default=clstr"`
	Endpoints         string        `env:"CLSTR_ENDPOINTS,required"`
	HandshakeTimeout  time.Duration `env:"CLSTR_HANDSHAKE_TIMEOUT,default=5s"`
	HeartbeatInterval time.Duration `env:"CLSTR_HEARTBEAT_INTERVAL,default=30s"`
	Key               string        `env:"CLSTR_KEY"`
	Watch             time.Duration `env:"CLSTR_WATCH"`
	MetricsAddr       string        `env:"CLSTR_METRICS_ADDR,default=:2122"`

	// Registry is one of memory, nats or redis.
	Registry  string `env:"CLSTR_REGISTRY,default=memory"`
	RedisAddr string `env:"REDIS_ADDR,default=127.0.0.1:6379"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var cfg config
	if err := envdecode.Decode(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %s\n", err)
		os.Exit(2)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	if err := run(ctx, log, cfg); err != nil {
		log.Error("probe failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func splitEndpoints(s string) []string {
	var out []string
	for _, e := range strings.Split(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

func openStore(ctx context.Context, cfg config, connect nats.Connector) (kv.Store, func(), error) {
	switch cfg.Registry {
	case "", "memory":
		return kv.NewMemStore(), func() {}, nil
	case "nats":
		s, err := nats.NewKvStore(ctx, nats.KvConfig{Connect: connect, Bucket: "clstr-nodes"})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "redis":
		s, err := redis.New(redis.Config{Addr: cfg.RedisAddr})
		if err != nil {
			return nil, nil, err
		}
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown registry backend: %s", cfg.Registry)
	}
}

func run(ctx context.Context, log *slog.Logger, cfg config) error {
	endpoints := splitEndpoints(cfg.Endpoints)
	if len(endpoints) == 0 {
		return errors.New("CLSTR_ENDPOINTS is empty")
	}

	connect := nats.ReuseConnection(nats.ConnectURL(cfg.NatsURL))

	store, closeStore, err := openStore(ctx, cfg, connect)
	if err != nil {
		return fmt.Errorf("open registry store: %w", err)
	}
	defer closeStore()

	tr, err := nats.NewTransport(nats.TransportConfig{
		Connect:       connect,
		Log:           log,
		SubjectPrefix: cfg.SubjectPrefix,
	})
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}
	defer tr.Close()

	reg := prometheus.NewRegistry()
	m := promadapter.NewAllMetrics(reg)

	c, err := client.New(client.Options{
		Endpoints:         endpoints,
		Transport:         tr,
		Registry:          topology.NewRegistry(topology.RegistryOptions{Log: log, Store: store}),
		HandshakeTimeout:  cfg.HandshakeTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
		Log:               log,
		Metrics:           m.Client,
		HandshakeMetrics:  m.Handshake,
		KeepaliveMetrics:  m.Keepalive,
	})
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Connect(ctx); err != nil {
		return err
	}

	for _, cn := range c.Connections() {
		if cc, ok := cn.Context(); ok {
			fmt.Printf("%-20s %s\n", cn.Endpoint(), cc)
		} else {
			fmt.Printf("%-20s unreachable\n", cn.Endpoint())
		}
	}

	if cfg.Key != "" {
		cn, cc, err := c.Route(cfg.Key)
		if err != nil {
			return fmt.Errorf("route %q: %w", cfg.Key, err)
		}
		fmt.Printf("key %q -> %s (node %s)\n", cfg.Key, cn.Endpoint(), cc.ClusterNode().ID())
	}

	if cfg.Watch <= 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", slog.Any("error", err))
		}
	}()
	defer srv.Shutdown(context.Background())

	log.Info("watching connections", slog.Duration("for", cfg.Watch))
	select {
	case <-ctx.Done():
	case <-time.After(cfg.Watch):
	}
	return nil
}
