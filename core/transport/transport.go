package transport

import "context"

type Subscription interface {
	Unsubscribe() error
}

type Handler = func(ctx context.Context, env Envelope) ([]byte, error)

type ClientTransport interface {
	// Request sends env to its endpoint and waits for the reply.
	Request(ctx context.Context, env Envelope) ([]byte, error)

	Close() error
}

type ServerTransport interface {
	// Serve delivers envelopes sent to endpoint until ctx is done or the
	// subscription is removed.
	//
	// Whether an endpoint may have more than one server depends on the
	// implementation: MemoryTransport refuses a second one with
	// ErrEndpointInUse, the NATS transport load-shares between them through
	// a queue group. A node id is one endpoint, so nodes never share one.
	Serve(ctx context.Context, endpoint string, h Handler) (Subscription, error)

	Close() error
}

type Transport interface {
	ClientTransport
	ServerTransport
}
