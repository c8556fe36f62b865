package server

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/clstr-client/core/proto"
	"github.com/codewandler/clstr-client/core/transport"
)

// CreateTestNodes starts numNodes nodes "node-0".."node-N" speaking version
// and returns their ids.
func CreateTestNodes(
	t *testing.T,
	tr transport.ServerTransport,
	numNodes int,
	version proto.Version,
	idleTimeout time.Duration,
	h transport.Handler,
) []string {
	ids := make([]string, 0, numNodes)
	for i := 0; i < numNodes; i++ {
		id := fmt.Sprintf("node-%d", i)
		s := New(Options{
			NodeID:      id,
			Addr:        fmt.Sprintf("10.0.0.%d:10800", i+1),
			Version:     version,
			IdleTimeout: idleTimeout,
			Transport:   tr,
			Handler:     h,
		})
		require.NoError(t, s.Run(t.Context()))
		ids = append(ids, id)
	}
	return ids
}
