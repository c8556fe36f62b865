// Package server runs the node side of a connection: it answers handshakes
// and heartbeats for one cluster node and hands all other messages to a
// user handler.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/codewandler/clstr-client/core/handshake"
	"github.com/codewandler/clstr-client/core/proto"
	"github.com/codewandler/clstr-client/core/transport"
	"github.com/codewandler/clstr-client/internal/codec"
)

type Options struct {
	Log *slog.Logger
	// NodeID is the node identity and the endpoint it serves.
	NodeID   string
	NodeName string
	Addr     string

	Version     proto.Version
	MinVersion  proto.Version
	IdleTimeout time.Duration

	Transport transport.ServerTransport
	Handler   transport.Handler
}

type Server struct {
	log   *slog.Logger
	t     transport.ServerTransport
	h     transport.Handler
	offer handshake.Offer
}

func New(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	nodeID := opts.NodeID
	if nodeID == "" {
		nodeID = fmt.Sprintf("node-%s", gonanoid.Must(6))
	}
	name := opts.NodeName
	if name == "" {
		name = nodeID
	}
	version := opts.Version
	if version.IsZero() {
		version = proto.Current
	}
	minVersion := opts.MinVersion
	if minVersion.IsZero() {
		minVersion = proto.MinSupported
	}

	hdl := opts.Handler
	if hdl == nil {
		hdl = func(ctx context.Context, env transport.Envelope) ([]byte, error) {
			return nil, fmt.Errorf("no handler registered for %s", env.Type)
		}
	}

	return &Server{
		log: log.With(slog.String("node", nodeID)),
		t:   opts.Transport,
		h:   hdl,
		offer: handshake.Offer{
			Version:     version,
			MinVersion:  minVersion,
			IdleTimeout: opts.IdleTimeout,
			Node:        handshake.NodeInfo{ID: nodeID, Name: name, Addr: opts.Addr},
		},
	}
}

func (s *Server) NodeID() string { return s.offer.Node.ID }

func (s *Server) handleMsg(ctx context.Context, env transport.Envelope) ([]byte, error) {
	s.log.Debug(
		"handle",
		slog.Group(
			"envelope",
			slog.String("type", env.Type),
			slog.Any("headers", env.Headers),
		),
	)

	switch env.Type {
	case handshake.MsgHandshake:
		return s.handshake(env)
	case handshake.MsgHeartbeat:
		return nil, nil
	}

	data, err := s.h(ctx, env)
	if err != nil {
		s.log.Error(
			"failed to handle message",
			slog.Group(
				"message",
				slog.String("type", env.Type),
				slog.Any("headers", env.Headers),
			),
			slog.Any("error", err),
		)
	}
	return data, err
}

func (s *Server) handshake(env transport.Envelope) ([]byte, error) {
	req, err := codec.Decode[handshake.Request](codec.Default, env.Data)
	if err != nil {
		return nil, err
	}
	resp := handshake.Accept(req, s.offer)
	if resp.Error != nil {
		s.log.Warn("handshake refused",
			slog.String("client_id", req.ClientID),
			slog.String("reason", resp.Error.Message),
		)
	} else {
		s.log.Info("handshake accepted",
			slog.String("client_id", req.ClientID),
			slog.String("version", resp.Version.String()),
		)
	}
	return codec.Default.Marshal(resp)
}

// Run serves the node endpoint until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if s.t == nil {
		return fmt.Errorf("server: Options.Transport is required")
	}
	s.log.Info("starting node",
		slog.String("version", s.offer.Version.String()),
		slog.Duration("idle_timeout", s.offer.IdleTimeout),
	)
	if _, err := s.t.Serve(ctx, s.offer.Node.ID, s.handleMsg); err != nil {
		return fmt.Errorf("failed to serve node %s: %w", s.offer.Node.ID, err)
	}
	return nil
}
