package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Connection is one push-transport session, owned exclusively by one
// authenticated user. It holds exactly one SubscriptionManager and is never
// reused: a reconnecting client always gets a fresh Connection.
type Connection struct {
	ID          string
	UserID      string
	ConnectedAt time.Time

	subs      *SubscriptionManager
	done      chan struct{}
	closeOnce sync.Once
}

// NewConnection creates a connection for an authenticated user, taking
// ownership of the subscription manager.
func NewConnection(userID string, subs *SubscriptionManager) *Connection {
	return &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		ConnectedAt: time.Now(),
		subs:        subs,
		done:        make(chan struct{}),
	}
}

// Events exposes the subscription manager's decoded envelope stream.
func (c *Connection) Events() <-chan Envelope {
	return c.subs.Events()
}

// Done is closed when the connection has been torn down.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Close tears the connection down: the subscriber handle is released and
// Done is closed. Idempotent; safe to invoke concurrently from the
// disconnect-detection path and a process shutdown path.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.subs.Close()
		close(c.done)
		log.Info().
			Str("connection_id", c.ID).
			Str("user_id", c.UserID).
			Msg("Connection closed")
	})
}
