package handshake

import "errors"

var (
	ErrVersionMismatch = errors.New("protocol version mismatch")
	ErrInvalidResponse = errors.New("invalid handshake response")
	ErrTimeout         = errors.New("handshake timed out")
	ErrRejected        = errors.New("handshake rejected")
)

// error codes carried in [ErrorInfo]
const (
	CodeVersionMismatch = "version_mismatch"
	CodeRejected        = "rejected"
)

func errorForCode(code string) error {
	switch code {
	case CodeVersionMismatch:
		return ErrVersionMismatch
	default:
		return ErrRejected
	}
}
