package topology

import "errors"

var (
	ErrNodeIDRequired = errors.New("node id is required")
	ErrNodeNotFound   = errors.New("node not found")
)
