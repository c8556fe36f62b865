package transport

import "errors"

var (
	ErrTransportClosed = errors.New("transport closed")
	ErrNoEndpoint      = errors.New("no node serves endpoint")
	ErrReservedHeader  = errors.New("cannot set reserved header")
	ErrEndpointInUse   = errors.New("endpoint already served")
)
