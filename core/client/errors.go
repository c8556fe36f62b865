package client

import "errors"

var (
	ErrClosed          = errors.New("client closed")
	ErrNotConnected    = errors.New("endpoint not connected")
	ErrUnknownEndpoint = errors.New("unknown endpoint")
)
