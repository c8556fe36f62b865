// Package client connects to a set of cluster node endpoints and routes
// requests to them.
//
// [Client.Connect] runs a handshake against every endpoint. Each successful
// handshake yields a [conn.Context] that is published in the endpoint's
// [Connection] and drives the rest of the connection's life: its idle
// timeout sets the heartbeat interval, its node binds key routing and its
// protocol version gates features.
//
//	c, err := client.New(client.Options{
//	    Endpoints: []string{"node-0", "node-1"},
//	    Transport: natsTransport,
//	})
//	if err := c.Connect(ctx); err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	resp, err := c.Request(ctx, "user:123", "get_user", payload)
//
// A reconnect never changes an existing context; it publishes a new one.
package client
