// Package hrw implements rendezvous (highest random weight) hashing over
// node ids.
package hrw

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Score is the weight of nodeID for key. seed separates otherwise
// identical key spaces.
func Score(key, nodeID, seed string) uint64 {
	h, _ := blake2b.New(8, nil)
	if seed != "" {
		h.Write([]byte(seed))
		h.Write([]byte{0})
	}
	h.Write([]byte(key))
	h.Write([]byte{0})
	h.Write([]byte(nodeID))
	return binary.BigEndian.Uint64(h.Sum(nil))
}

// Best returns the highest scoring node. ok is false if nodes is empty.
func Best(key string, nodes []string, seed string) (best string, ok bool) {
	var bestScore uint64
	for _, n := range nodes {
		s := Score(key, n, seed)
		if !ok || s > bestScore || (s == bestScore && n < best) {
			best, bestScore, ok = n, s, true
		}
	}
	return
}
