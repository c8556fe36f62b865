package nats

import (
	"context"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testImage = "nats:latest"

type Testing interface {
	require.TestingT
	Context() context.Context
	Logf(format string, args ...any)
	Cleanup(func())
}

// StartTestServer runs a JetStream enabled NATS server in a container that
// lives as long as the test, and returns its client URL.
func StartTestServer(t Testing) (natsURL string) {
	ctx := t.Context()
	c, err := testcontainers.Run(
		ctx, testImage,
		testcontainers.WithCmd("-js"),
		testcontainers.WithExposedPorts("4222/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("4222/tcp"),
			wait.ForLog("Server is ready"),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(c); err != nil {
			t.Errorf("terminate %s: %s", testImage, err.Error())
		}
	})

	natsURL, err = c.PortEndpoint(ctx, "4222/tcp", "nats")
	require.NoError(t, err)
	t.Logf("nats url: %s", natsURL)
	return natsURL
}

// NewTestContainer is StartTestServer returning a Connector for the server.
func NewTestContainer(t Testing) Connector {
	return ConnectURL(StartTestServer(t))
}
