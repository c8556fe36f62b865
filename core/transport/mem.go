package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/codewandler/clstr-client/internal/codec"
)

// MemoryTransport delivers envelopes within the process. Handlers run on
// their own goroutine, like on a real network.
type MemoryTransport struct {
	mu  sync.RWMutex
	log *slog.Logger

	closed bool

	// endpoint -> serving subscription
	endpoints map[string]*memSubscription

	// replyTo -> reply channel
	inboxes map[string]chan []byte

	seq atomic.Uint64
}

func NewInMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		log:       slog.New(slog.DiscardHandler),
		endpoints: make(map[string]*memSubscription),
		inboxes:   make(map[string]chan []byte),
	}
}

func (t *MemoryTransport) WithLog(log *slog.Logger) *MemoryTransport {
	t.log = log.With(slog.String("transport", "mem"))
	return t
}

func (t *MemoryTransport) Request(ctx context.Context, env Envelope) ([]byte, error) {
	replyTo := fmt.Sprintf("inbox.%d", t.seq.Add(1))
	replyCh, err := t.registerInbox(replyTo)
	if err != nil {
		return nil, err
	}
	defer t.unregisterInbox(replyTo)

	env.ReplyTo = replyTo

	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return nil, ErrTransportClosed
	}
	sub := t.endpoints[env.Endpoint]
	t.mu.RUnlock()

	if sub == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoEndpoint, env.Endpoint)
	}

	go t.invoke(sub, env)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case b, ok := <-replyCh:
		if !ok {
			return nil, ErrTransportClosed
		}
		f, err := codec.Decode[codec.Frame](codec.Default, b)
		if err != nil {
			return nil, err
		}
		if f.Err != "" {
			return nil, errors.New(f.Err)
		}
		return f.Data, nil
	}
}

// Serve registers h as the only server of endpoint. A second server fails
// with ErrEndpointInUse until the first unsubscribes.
func (t *MemoryTransport) Serve(ctx context.Context, endpoint string, h Handler) (Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrTransportClosed
	}
	if _, ok := t.endpoints[endpoint]; ok {
		return nil, fmt.Errorf("%w: %s", ErrEndpointInUse, endpoint)
	}

	s := &memSubscription{
		t:        t,
		ctx:      ctx,
		log:      t.log.With(slog.String("endpoint", endpoint)),
		endpoint: endpoint,
		h:        h,
	}
	t.endpoints[endpoint] = s
	s.log.Debug("serving")

	context.AfterFunc(ctx, func() {
		_ = s.Unsubscribe()
	})

	return s, nil
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	for k, ch := range t.inboxes {
		close(ch)
		delete(t.inboxes, k)
	}
	clear(t.endpoints)

	t.log.Debug("closed")
	return nil
}

type memSubscription struct {
	t        *MemoryTransport
	ctx      context.Context
	log      *slog.Logger
	endpoint string
	h        Handler
	once     sync.Once
}

func (s *memSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.t.mu.Lock()
		defer s.t.mu.Unlock()
		if s.t.endpoints[s.endpoint] == s {
			delete(s.t.endpoints, s.endpoint)
		}
		s.log.Debug("unsubscribed")
	})
	return nil
}

func (t *MemoryTransport) invoke(s *memSubscription, env Envelope) {
	resp, err := s.h(s.ctx, env)

	f := codec.Frame{Data: resp}
	if err != nil {
		f = codec.Frame{Err: err.Error()}
	}
	b, _ := codec.Default.Marshal(f)

	t.mu.RLock()
	defer t.mu.RUnlock()
	ch := t.inboxes[env.ReplyTo]
	if ch == nil {
		// requester gave up
		t.log.Warn("dropping reply", slog.String("reply_to", env.ReplyTo))
		return
	}
	select {
	case ch <- b:
	default:
	}
}

func (t *MemoryTransport) registerInbox(replyTo string) (<-chan []byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrTransportClosed
	}
	ch := make(chan []byte, 1)
	t.inboxes[replyTo] = ch
	return ch, nil
}

func (t *MemoryTransport) unregisterInbox(replyTo string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ch := t.inboxes[replyTo]; ch != nil {
		close(ch)
		delete(t.inboxes, replyTo)
	}
}

var _ Transport = (*MemoryTransport)(nil)
