// Package routing picks the connection a request should use, based on the
// node each connection is bound to and the protocol version it negotiated.
//
// Keys map to partitions; partitions map to nodes by rendezvous hashing
// over the connected nodes. Only connections whose protocol supports
// partition awareness take part in key routing.
package routing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/crypto/blake2b"

	"github.com/codewandler/clstr-client/core/conn"
	"github.com/codewandler/clstr-client/core/proto"
	"github.com/codewandler/clstr-client/internal/hrw"
)

const DefaultPartitions = 1024

var ErrNoRoute = errors.New("no route")

// PartitionForKey maps key to a partition in [0, n).
func PartitionForKey(key string, n uint32, seed string) uint32 {
	if n == 0 {
		return 0
	}
	h, _ := blake2b.New(8, nil)
	if seed != "" {
		h.Write([]byte(seed))
		h.Write([]byte{0})
	}
	h.Write([]byte(key))
	return uint32(binary.BigEndian.Uint64(h.Sum(nil)) % uint64(n))
}

type Options struct {
	Partitions uint32
	Seed       string
}

// table is an immutable routing snapshot.
type table struct {
	byNode map[string]*conn.Context
	ids    []string
}

type Router struct {
	partitions uint32
	seed       string
	t          atomic.Pointer[table]
}

func NewRouter(opts Options) *Router {
	partitions := opts.Partitions
	if partitions == 0 {
		partitions = DefaultPartitions
	}
	r := &Router{partitions: partitions, seed: opts.Seed}
	r.t.Store(&table{byNode: map[string]*conn.Context{}})
	return r
}

// Update replaces the routing table. With several contexts for the same
// node the last one wins.
func (r *Router) Update(ctxs []*conn.Context) {
	t := &table{byNode: make(map[string]*conn.Context, len(ctxs))}
	for _, cc := range ctxs {
		if cc == nil {
			continue
		}
		t.byNode[cc.ClusterNode().ID()] = cc
	}
	for id := range t.byNode {
		t.ids = append(t.ids, id)
	}
	slices.Sort(t.ids)
	r.t.Store(t)
}

// Nodes lists the routable node ids.
func (r *Router) Nodes() []string {
	return slices.Clone(r.t.Load().ids)
}

// ForNode returns the context bound to nodeID.
func (r *Router) ForNode(nodeID string) (*conn.Context, bool) {
	cc, ok := r.t.Load().byNode[nodeID]
	return cc, ok
}

type pick struct {
	features []proto.Feature
}

type PickOption func(*pick)

// WithFeature only considers connections whose negotiated version
// supports f.
func WithFeature(f proto.Feature) PickOption {
	return func(p *pick) { p.features = append(p.features, f) }
}

func (p pick) eligible(cc *conn.Context) bool {
	for _, f := range p.features {
		if !cc.Version().Supports(f) {
			return false
		}
	}
	return true
}

// ForKey returns the connection owning key's partition among the eligible
// connections.
func (r *Router) ForKey(key string, opts ...PickOption) (*conn.Context, error) {
	p := pick{features: []proto.Feature{proto.FeaturePartitionAwareness}}
	for _, opt := range opts {
		opt(&p)
	}

	t := r.t.Load()
	candidates := make([]string, 0, len(t.ids))
	for _, id := range t.ids {
		if p.eligible(t.byNode[id]) {
			candidates = append(candidates, id)
		}
	}

	partition := PartitionForKey(key, r.partitions, r.seed)
	id, ok := hrw.Best("partition:"+strconv.FormatUint(uint64(partition), 10), candidates, r.seed)
	if !ok {
		return nil, fmt.Errorf("%w for key %q (features: %s)", ErrNoRoute, key, featureList(p.features))
	}
	return t.byNode[id], nil
}

// Supporting returns the contexts whose negotiated version supports f,
// ordered by node id.
func (r *Router) Supporting(f proto.Feature) []*conn.Context {
	t := r.t.Load()
	out := make([]*conn.Context, 0, len(t.ids))
	for _, id := range t.ids {
		if cc := t.byNode[id]; cc.Version().Supports(f) {
			out = append(out, cc)
		}
	}
	return out
}

func featureList(fs []proto.Feature) string {
	s := make([]string, len(fs))
	for i, f := range fs {
		s[i] = string(f)
	}
	return strings.Join(s, ",")
}
