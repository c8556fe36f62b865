// Package transport moves request/reply messages between a client and the
// cluster node serving an endpoint.
//
// An endpoint is the address a node listens on; the client only knows
// endpoints until the handshake tells it which node answered. [Transport]
// abstracts the messaging infrastructure; [MemoryTransport] is an
// in-process implementation and adapters/nats provides one on NATS.
package transport
