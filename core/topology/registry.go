package topology

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/codewandler/clstr-client/ports/kv"
)

type RegistryOptions struct {
	Log *slog.Logger
	// Store persists resolved identities (optional).
	Store kv.Store
	// KeyPrefix for persisted identities, defaults to "node.".
	KeyPrefix string
}

// Registry interns node identities. Resolving the same identity twice
// returns the same *Node, so many connections can share one reference.
type Registry struct {
	log    *slog.Logger
	store  kv.Store
	prefix string

	mu    sync.RWMutex
	nodes map[string]*Node
}

type nodeRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Addr string `json:"addr"`
}

func NewRegistry(opts RegistryOptions) *Registry {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "node."
	}
	return &Registry{
		log:    log.With(slog.String("component", "topology")),
		store:  opts.Store,
		prefix: prefix,
		nodes:  make(map[string]*Node),
	}
}

// Resolve returns the canonical node for the given identity. A known node
// with identical name and address is returned as is; otherwise a new Node
// replaces it. Nodes handed out earlier stay valid and unchanged.
func (r *Registry) Resolve(ctx context.Context, id, name, addr string) (*Node, error) {
	if id == "" {
		return nil, ErrNodeIDRequired
	}
	candidate := NewNode(id, name, addr)

	r.mu.RLock()
	existing, ok := r.nodes[id]
	r.mu.RUnlock()
	if ok && existing.Equal(candidate) {
		return existing, nil
	}

	// the node only becomes known once it is stored, a failed write is
	// retried by the next Resolve
	if err := r.persist(ctx, candidate); err != nil {
		return nil, err
	}

	r.mu.Lock()
	existing, ok = r.nodes[id]
	if ok && existing.Equal(candidate) {
		r.mu.Unlock()
		return existing, nil
	}
	r.nodes[id] = candidate
	r.mu.Unlock()

	if ok {
		r.log.Info("node identity changed", slog.Any("old", existing), slog.Any("new", candidate))
	} else {
		r.log.Debug("node registered", slog.Any("node", candidate))
	}
	return candidate, nil
}

// Get returns a node known to this process.
func (r *Registry) Get(id string) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[id]
	return n, ok
}

// Lookup returns a known node, falling back to the store.
func (r *Registry) Lookup(ctx context.Context, id string) (*Node, error) {
	if n, ok := r.Get(id); ok {
		return n, nil
	}
	if r.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	rec, err := kv.Get[nodeRecord](ctx, r.store, r.key(id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		return nil, fmt.Errorf("topology: load node %s: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// another caller may have resolved it meanwhile
	if n, ok := r.nodes[id]; ok {
		return n, nil
	}
	n := NewNode(rec.ID, rec.Name, rec.Addr)
	r.nodes[id] = n
	return n, nil
}

// Remove forgets a node. Connections still holding it are not affected.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.nodes, id)
	r.mu.Unlock()

	if r.store == nil {
		return nil
	}
	if err := r.store.Delete(ctx, r.key(id)); err != nil {
		return fmt.Errorf("topology: delete node %s: %w", id, err)
	}
	return nil
}

// Nodes returns all known nodes ordered by id.
func (r *Registry) Nodes() []*Node {
	r.mu.RLock()
	out := make([]*Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Node) int { return strings.Compare(a.id, b.id) })
	return out
}

func (r *Registry) key(id string) string { return r.prefix + id }

func (r *Registry) persist(ctx context.Context, n *Node) error {
	if r.store == nil {
		return nil
	}
	rec := nodeRecord{ID: n.id, Name: n.name, Addr: n.addr}
	if err := kv.Put(ctx, r.store, r.key(n.id), rec, kv.PutOptions{}); err != nil {
		return fmt.Errorf("topology: persist node %s: %w", n.id, err)
	}
	return nil
}
