// Package topology holds the identities of the cluster members a client
// talks to. The [Registry] owns every [Node]; connections only keep a
// reference to the node they are bound to.
package topology

import (
	"fmt"
	"log/slog"
	"net"
)

// Node is the identity of a single server-side cluster member. It is
// immutable; a change of name or address yields a new Node.
type Node struct {
	id   string
	name string
	addr string
}

// NewNode creates a node identity. addr is "host:port" or a bare host.
func NewNode(id, name, addr string) *Node {
	return &Node{id: id, name: name, addr: addr}
}

func (n *Node) ID() string   { return n.id }
func (n *Node) Name() string { return n.name }
func (n *Node) Addr() string { return n.addr }

// Host returns the host part of the address.
func (n *Node) Host() string {
	host, _, err := net.SplitHostPort(n.addr)
	if err != nil {
		return n.addr
	}
	return host
}

// Equal compares identities by value. Two nil nodes are equal.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	return *n == *o
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	return fmt.Sprintf("{id: %s, name: %s, addr: %s}", n.id, n.name, n.addr)
}

func (n *Node) LogValue() slog.Value {
	if n == nil {
		return slog.StringValue("<nil>")
	}
	return slog.GroupValue(
		slog.String("id", n.id),
		slog.String("name", n.name),
		slog.String("addr", n.addr),
	)
}
