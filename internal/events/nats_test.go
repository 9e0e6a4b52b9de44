package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	server, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)

	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func TestNATSPublisher_EmbeddedServer(t *testing.T) {
	server := startTestNATSServer(t)

	nc, err := Connect(server.ClientURL(), "propertyrag-test")
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(SubjectQueryCompleted, ch)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })
	require.NoError(t, nc.Flush())

	err = NewNATSPublisher(nc, "").PublishQueryCompleted(context.Background(), QueryCompleted{
		ID:         "q-7",
		Query:      "logements vacants à Aigle",
		Intent:     "risk",
		Confidence: 0.58,
		Iterations: 3,
		Warnings:   []string{"confidence below threshold"},
		At:         time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	select {
	case msg := <-ch:
		var ev QueryCompleted
		require.NoError(t, json.Unmarshal(msg.Data, &ev))
		assert.Equal(t, "q-7", ev.ID)
		assert.Equal(t, "risk", ev.Intent)
		assert.False(t, ev.Success)
		assert.Equal(t, 3, ev.Iterations)
		assert.Equal(t, []string{"confidence below threshold"}, ev.Warnings)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for query.completed event")
	}
}

func TestConnect_Unreachable(t *testing.T) {
	server := startTestNATSServer(t)
	url := server.ClientURL()
	server.Shutdown()
	server.WaitForShutdown()

	// RetryOnFailedConnect returns a reconnecting connection, not an error.
	nc, err := Connect(url, "propertyrag-test")
	require.NoError(t, err)
	defer nc.Close()
	assert.False(t, nc.IsConnected())
}
