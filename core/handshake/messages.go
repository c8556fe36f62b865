package handshake

import (
	"fmt"
	"time"

	"github.com/codewandler/clstr-client/core/proto"
)

const (
	MsgHandshake = "clstr.handshake"
	MsgHeartbeat = "clstr.heartbeat"
)

type (
	Request struct {
		// Version is the highest version the client speaks.
		Version proto.Version `json:"version"`
		// MinVersion is the lowest version the client accepts.
		MinVersion proto.Version   `json:"min_version"`
		ClientID   string          `json:"client_id"`
		Features   []proto.Feature `json:"features,omitempty"`
	}

	NodeInfo struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Addr string `json:"addr"`
	}

	ErrorInfo struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}

	Response struct {
		// Version is the agreed version, or the node's highest version
		// when Error is set.
		Version proto.Version `json:"version"`
		// IdleTimeoutMs is the node's idle timeout, 0 for none.
		IdleTimeoutMs int64      `json:"idle_timeout_ms"`
		Node          NodeInfo   `json:"node"`
		Error         *ErrorInfo `json:"error,omitempty"`
	}

	// Offer is what a node brings to the negotiation.
	Offer struct {
		Version     proto.Version
		MinVersion  proto.Version
		IdleTimeout time.Duration
		Node        NodeInfo
	}
)

// Negotiate returns the lower of both maximum versions if it lies within
// both accepted ranges.
func Negotiate(clientMax, clientMin, serverMax, serverMin proto.Version) (proto.Version, error) {
	agreed := proto.Min(clientMax, serverMax)
	if agreed.Less(clientMin) || agreed.Less(serverMin) {
		return proto.Version{}, fmt.Errorf(
			"%w: client speaks %s..%s, server speaks %s..%s",
			ErrVersionMismatch, clientMin, clientMax, serverMin, serverMax,
		)
	}
	return agreed, nil
}

// Accept answers a handshake request on the node side.
func Accept(req Request, o Offer) Response {
	agreed, err := Negotiate(req.Version, req.MinVersion, o.Version, o.MinVersion)
	if err != nil {
		return Response{
			Version: o.Version,
			Node:    o.Node,
			Error:   &ErrorInfo{Code: CodeVersionMismatch, Message: err.Error()},
		}
	}
	return Response{
		Version:       agreed,
		IdleTimeoutMs: o.IdleTimeout.Milliseconds(),
		Node:          o.Node,
	}
}
