// Package broker provides the pub/sub capability boundary used by the
// realtime fan-out layer. Producers publish serialized events to named
// channels; each client connection owns a dedicated Subscriber handle that
// receives messages for the channels it subscribed to.
package broker

import (
	"context"
	"errors"
)

// ErrBrokerUnavailable is reported when no broker connection exists at
// publish or subscribe time. Callers are expected to proceed without
// real-time delivery; durable writes must never depend on broker health.
var ErrBrokerUnavailable = errors.New("broker unavailable")

// Message represents a pub/sub message delivered to a subscriber.
type Message struct {
	// Channel is the channel the message was published to
	Channel string `json:"channel"`

	// Payload is the message content
	Payload []byte `json:"payload"`
}

// Broker is the interface for pub/sub backends.
// Implementations must handle concurrent access safely.
type Broker interface {
	// Publish sends a message to all subscribers of a channel.
	// Delivery is fire-and-forget: the call returns once the broker has
	// accepted the message, without waiting on subscriber delivery.
	Publish(ctx context.Context, channel string, payload []byte) error

	// NewSubscriber returns a fresh subscriber handle backed by its own
	// broker connection, independent of the shared publisher connection.
	// One handle belongs to exactly one client connection.
	NewSubscriber(ctx context.Context) (Subscriber, error)

	// Close releases the publisher connection and all outstanding handles.
	Close() error
}

// Subscriber is a dedicated subscription handle. Messages for all
// subscribed channels are multiplexed onto the single Messages channel.
type Subscriber interface {
	// Subscribe registers the handle for one or more channels.
	Subscribe(ctx context.Context, channels ...string) error

	// Unsubscribe removes channel registrations. Unsubscribing a channel
	// that was never subscribed is a no-op.
	Unsubscribe(ctx context.Context, channels ...string) error

	// Messages returns the delivery channel. It is closed when the handle
	// is closed or the broker shuts down.
	Messages() <-chan Message

	// Close releases the handle and its broker connection. Idempotent.
	Close() error
}

// subscriberBuffer is the per-handle delivery buffer. Messages beyond the
// buffer are dropped rather than blocking the broker read loop.
const subscriberBuffer = 100
