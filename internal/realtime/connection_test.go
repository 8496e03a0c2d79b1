package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayli-app/chatwire/internal/broker"
)

func newTestConnection(t *testing.T, b broker.Broker, userID string) *Connection {
	t.Helper()
	m, err := OpenSubscriptions(context.Background(), b, 8,
		MessagesChannel(userID), TypingChannel(userID), StatusChannel(userID))
	require.NoError(t, err)
	return NewConnection(userID, m)
}

func TestConnection_FreshIdentityPerConnection(t *testing.T) {
	b := broker.NewLocalBroker()
	defer b.Close()

	c1 := newTestConnection(t, b, "42")
	defer c1.Close()
	c2 := newTestConnection(t, b, "42")
	defer c2.Close()

	assert.NotEqual(t, c1.ID, c2.ID)
	assert.Equal(t, "42", c1.UserID)
	assert.False(t, c1.ConnectedAt.IsZero())
}

func TestConnection_CloseSignalsDoneAndReleasesSubscriber(t *testing.T) {
	b := broker.NewLocalBroker()
	defer b.Close()

	conn := newTestConnection(t, b, "42")

	select {
	case <-conn.Done():
		t.Fatal("Done closed before Close")
	default:
	}

	conn.Close()
	conn.Close()

	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Close")
	}

	// A publish after teardown reaches nobody.
	require.NoError(t, b.Publish(context.Background(), MessagesChannel("42"), []byte(`{}`)))
}

func TestRegistry_AddRemoveCount(t *testing.T) {
	b := broker.NewLocalBroker()
	defer b.Close()

	r := NewRegistry(nil)
	assert.Equal(t, 0, r.Count())

	conn := newTestConnection(t, b, "42")
	defer conn.Close()

	r.Add(conn)
	assert.Equal(t, 1, r.Count())

	r.Remove(conn.ID)
	assert.Equal(t, 0, r.Count())

	// Removing an unknown ID is a no-op
	r.Remove("missing")
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_ShutdownClosesAllConnections(t *testing.T) {
	b := broker.NewLocalBroker()
	defer b.Close()

	r := NewRegistry(nil)
	conns := make([]*Connection, 3)
	for i := range conns {
		conns[i] = newTestConnection(t, b, "42")
		r.Add(conns[i])
	}

	r.Shutdown()
	assert.Equal(t, 0, r.Count())

	for _, conn := range conns {
		select {
		case <-conn.Done():
		case <-time.After(time.Second):
			t.Fatal("connection not closed by Shutdown")
		}
	}
}

func TestRegistry_ShutdownRacesWithConnectionClose(t *testing.T) {
	b := broker.NewLocalBroker()
	defer b.Close()

	r := NewRegistry(nil)
	conn := newTestConnection(t, b, "42")
	r.Add(conn)

	done := make(chan struct{})
	go func() {
		conn.Close()
		done <- struct{}{}
	}()
	r.Shutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("concurrent close hung")
	}
}
