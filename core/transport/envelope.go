package transport

import (
	"fmt"
	"strings"
)

const (
	reservedHeaderPrefix = "x-clstr-"

	// HeaderNodeID carries the node a request is meant for.
	HeaderNodeID = "x-clstr-node"
	// HeaderClientID identifies the sending client.
	HeaderClientID = "x-clstr-client"
)

type EnvelopeOption func(*Envelope)

// WithHeader sets a user header. Headers starting with "x-clstr-" are
// reserved, see [Envelope.Validate].
func WithHeader(key, value string) EnvelopeOption {
	return func(e *Envelope) {
		if e.Headers == nil {
			e.Headers = make(map[string]string)
		}
		e.Headers[key] = value
	}
}

type Envelope struct {
	Endpoint string            `json:"endpoint"`
	Type     string            `json:"type"`
	Data     []byte            `json:"data,omitempty"`
	ReplyTo  string            `json:"reply_to,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// NewEnvelope builds an envelope from user options. Reserved headers are
// rejected.
func NewEnvelope(endpoint, msgType string, data []byte, opts ...EnvelopeOption) (Envelope, error) {
	e := Envelope{Endpoint: endpoint, Type: msgType, Data: data}
	for _, opt := range opts {
		opt(&e)
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

func (e Envelope) Validate() error {
	if e.Endpoint == "" {
		return fmt.Errorf("transport: envelope endpoint is required")
	}
	if e.Type == "" {
		return fmt.Errorf("transport: envelope type is required")
	}
	for k := range e.Headers {
		if strings.HasPrefix(k, reservedHeaderPrefix) {
			return fmt.Errorf("%w: %s", ErrReservedHeader, k)
		}
	}
	return nil
}

func (e Envelope) GetHeader(key string) (string, bool) {
	if e.Headers == nil {
		return "", false
	}
	v, ok := e.Headers[key]
	return v, ok
}

// SetHeader sets a header without validation; the client uses it for the
// reserved headers.
func (e *Envelope) SetHeader(key, value string) {
	if e.Headers == nil {
		e.Headers = make(map[string]string)
	}
	e.Headers[key] = value
}
