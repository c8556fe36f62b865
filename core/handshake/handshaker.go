package handshake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/codewandler/clstr-client/core/conn"
	"github.com/codewandler/clstr-client/core/proto"
	"github.com/codewandler/clstr-client/core/topology"
	"github.com/codewandler/clstr-client/core/transport"
	"github.com/codewandler/clstr-client/internal/codec"
)

const DefaultTimeout = 5 * time.Second

// maxIdleTimeoutMs is the largest idle timeout a time.Duration can hold.
const maxIdleTimeoutMs = math.MaxInt64 / int64(time.Millisecond)

type Options struct {
	Transport transport.ClientTransport
	// Registry resolves the identity of the answering node. A private
	// registry is used if nil.
	Registry *topology.Registry
	// Version is the highest version offered, defaults to proto.Current.
	Version proto.Version
	// MinVersion is the lowest version accepted, defaults to proto.MinSupported.
	MinVersion proto.Version
	// ClientID identifies this client towards the nodes, random if empty.
	ClientID string
	Timeout  time.Duration
	Log      *slog.Logger
	Metrics  Metrics
}

type Handshaker struct {
	t          transport.ClientTransport
	registry   *topology.Registry
	version    proto.Version
	minVersion proto.Version
	clientID   string
	timeout    time.Duration
	log        *slog.Logger
	metrics    Metrics
}

func New(opts Options) (*Handshaker, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("handshake: Options.Transport is required")
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	registry := opts.Registry
	if registry == nil {
		registry = topology.NewRegistry(topology.RegistryOptions{Log: log})
	}
	version := opts.Version
	if version.IsZero() {
		version = proto.Current
	}
	minVersion := opts.MinVersion
	if minVersion.IsZero() {
		minVersion = proto.MinSupported
	}
	if version.Less(minVersion) {
		return nil, fmt.Errorf("handshake: Options.Version %s is lower than Options.MinVersion %s", version, minVersion)
	}
	clientID := opts.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	m := opts.Metrics
	if m == nil {
		m = NopMetrics()
	}
	return &Handshaker{
		t:          opts.Transport,
		registry:   registry,
		version:    version,
		minVersion: minVersion,
		clientID:   clientID,
		timeout:    timeout,
		log:        log.With(slog.String("component", "handshake")),
		metrics:    m,
	}, nil
}

func (h *Handshaker) ClientID() string { return h.clientID }

// Handshake negotiates with the node serving endpoint. A context is only
// returned when the node accepted and its response is complete.
func (h *Handshaker) Handshake(ctx context.Context, endpoint string) (cc *conn.Context, err error) {
	defer h.metrics.HandshakeDuration().ObserveDuration()
	defer func() {
		h.metrics.HandshakeCompleted(resultOf(err))
	}()

	log := h.log.With(slog.String("endpoint", endpoint))

	reqCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req := Request{
		Version:    h.version,
		MinVersion: h.minVersion,
		ClientID:   h.clientID,
		Features:   h.version.Features(),
	}
	data, err := codec.Default.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("handshake: encode request: %w", err)
	}
	env := transport.Envelope{Endpoint: endpoint, Type: MsgHandshake, Data: data}
	env.SetHeader(transport.HeaderClientID, h.clientID)

	raw, err := h.t.Request(reqCtx, env)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, endpoint, h.timeout)
		}
		return nil, fmt.Errorf("handshake %s: %w", endpoint, err)
	}

	resp, err := codec.Decode[Response](codec.Default, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("handshake %s: %w: %s", endpoint, errorForCode(resp.Error.Code), resp.Error.Message)
	}

	// the node may answer with its own maximum, agree on the lower one
	version, err := Negotiate(h.version, h.minVersion, resp.Version, proto.Version{})
	if err != nil {
		return nil, fmt.Errorf("handshake %s: %w", endpoint, err)
	}
	if resp.IdleTimeoutMs < 0 {
		return nil, fmt.Errorf("%w: negative idle timeout %dms", ErrInvalidResponse, resp.IdleTimeoutMs)
	}
	if resp.IdleTimeoutMs > maxIdleTimeoutMs {
		return nil, fmt.Errorf("%w: idle timeout %dms out of range", ErrInvalidResponse, resp.IdleTimeoutMs)
	}
	if resp.Node.ID == "" {
		return nil, fmt.Errorf("%w: missing node id", ErrInvalidResponse)
	}

	node, err := h.registry.Resolve(ctx, resp.Node.ID, resp.Node.Name, resp.Node.Addr)
	if err != nil {
		return nil, fmt.Errorf("handshake %s: %w", endpoint, err)
	}

	cc = conn.New(version, time.Duration(resp.IdleTimeoutMs)*time.Millisecond, node)
	h.metrics.VersionNegotiated(version.String())
	log.Debug("handshake completed", slog.Any("conn", cc))
	return cc, nil
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrVersionMismatch):
		return "version_mismatch"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "transport"
	}
}
