package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	natsgo "github.com/nats-io/nats.go"

	"github.com/codewandler/clstr-client/core/transport"
	"github.com/codewandler/clstr-client/internal/codec"
)

const queueGroup = "clstr-node"

type TransportConfig struct {
	Connect       Connector    // Connect creates the NATS connection. If nil, ConnectDefault() is used.
	Log           *slog.Logger // Log for diagnostics (optional)
	SubjectPrefix string       // SubjectPrefix for endpoint subjects, e.g. "clstr" -> clstr.endpoint.<id>
}

type Transport struct {
	nc      *natsgo.Conn
	closeNc closeFunc
	log     *slog.Logger
	prefix  string

	mu   sync.Mutex
	subs map[*natsgo.Subscription]struct{}

	closed atomic.Bool
}

func NewTransport(cfg TransportConfig) (*Transport, error) {
	connFn := cfg.Connect
	if connFn == nil {
		connFn = ConnectDefault()
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "clstr"
	}

	nc, closeNc, err := connFn()
	if err != nil {
		return nil, fmt.Errorf("nats: connect: %w", err)
	}

	return &Transport{
		nc:      nc,
		closeNc: closeNc,
		log:     log.With(slog.String("transport", "nats")),
		prefix:  prefix,
		subs:    make(map[*natsgo.Subscription]struct{}),
	}, nil
}

func (t *Transport) subject(endpoint string) string {
	return t.prefix + ".endpoint." + endpoint
}

func (t *Transport) Request(ctx context.Context, env transport.Envelope) ([]byte, error) {
	if t.closed.Load() {
		return nil, transport.ErrTransportClosed
	}

	payload, err := codec.Default.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	msg, err := t.nc.RequestWithContext(ctx, t.subject(env.Endpoint), payload)
	if err != nil {
		switch {
		case errors.Is(err, natsgo.ErrNoResponders):
			return nil, fmt.Errorf("%w: %s", transport.ErrNoEndpoint, env.Endpoint)
		case errors.Is(err, natsgo.ErrConnectionClosed):
			return nil, transport.ErrTransportClosed
		case ctx.Err() != nil:
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("nats: request: %w", err)
	}

	f, err := codec.Decode[codec.Frame](codec.Default, msg.Data)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if f.Err != "" {
		return nil, errors.New(f.Err)
	}
	return f.Data, nil
}

// Serve subscribes to the endpoint subject. Several nodes serving the same
// endpoint share the load through a queue group.
func (t *Transport) Serve(ctx context.Context, endpoint string, h transport.Handler) (transport.Subscription, error) {
	if t.closed.Load() {
		return nil, transport.ErrTransportClosed
	}
	log := t.log.With(slog.String("endpoint", endpoint))

	sub, err := t.nc.QueueSubscribe(t.subject(endpoint), queueGroup, func(msg *natsgo.Msg) {
		env, err := codec.Decode[transport.Envelope](codec.Default, msg.Data)
		if err != nil {
			log.Error("failed to decode envelope", slog.Any("error", err))
			return
		}

		data, err := h(ctx, env)
		f := codec.Frame{Data: data}
		if err != nil {
			f = codec.Frame{Err: err.Error()}
		}
		b, _ := codec.Default.Marshal(f)

		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(b); err != nil {
			log.Error("failed to publish reply", slog.Any("error", err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats: subscribe endpoint %s: %w", endpoint, err)
	}

	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()

	s := &subscription{sub: sub, t: t}
	context.AfterFunc(ctx, func() {
		_ = s.Unsubscribe()
	})
	log.Debug("serving")
	return s, nil
}

func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	for s := range t.subs {
		_ = s.Unsubscribe()
	}
	clear(t.subs)
	t.mu.Unlock()

	// the connection may be shared, flush instead of draining it
	if err := t.nc.Flush(); err != nil {
		t.log.Warn("flush failed", slog.Any("error", err))
	}
	t.closeNc()
	return nil
}

type subscription struct {
	sub  *natsgo.Subscription
	t    *Transport
	once sync.Once
	err  error
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		s.t.mu.Lock()
		_, live := s.t.subs[s.sub]
		delete(s.t.subs, s.sub)
		s.t.mu.Unlock()
		if live {
			s.err = s.sub.Unsubscribe()
		}
	})
	return s.err
}

var _ transport.Transport = (*Transport)(nil)
