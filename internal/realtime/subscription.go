package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/wayli-app/chatwire/internal/broker"
)

// SubscriptionManager owns the single broker subscriber handle of one
// client connection. It multiplexes the handle's channel subscriptions into
// a stream of decoded Envelopes and guarantees the handle is released
// exactly once, whichever exit path triggers teardown.
//
// When the broker is down the manager still opens, but degraded: the event
// stream stays silent and the connection carries only heartbeats. The
// initial connected event is the caller's responsibility either way.
type SubscriptionManager struct {
	sub      broker.Subscriber // nil when degraded
	events   chan Envelope
	done     chan struct{}
	stopOnce sync.Once
}

// OpenSubscriptions acquires a dedicated subscriber handle and registers it
// for the given channels. A non-nil error reports degraded setup (broker
// unreachable or subscribe failure); the returned manager is still usable
// and must still be closed.
func OpenSubscriptions(ctx context.Context, b broker.Broker, bufferSize int, channels ...string) (*SubscriptionManager, error) {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	m := &SubscriptionManager{
		events: make(chan Envelope, bufferSize),
		done:   make(chan struct{}),
	}

	sub, err := b.NewSubscriber(ctx)
	if err != nil {
		go m.idle()
		return m, fmt.Errorf("acquire subscriber: %w", err)
	}

	if err := sub.Subscribe(ctx, channels...); err != nil {
		_ = sub.Close()
		go m.idle()
		return m, fmt.Errorf("subscribe %v: %w", channels, err)
	}

	m.sub = sub
	go m.pump()
	return m, nil
}

// Events returns the decoded envelope stream. It is closed once the
// underlying handle shuts down; degraded managers never close it, so
// consumers must also watch their own teardown signal.
func (m *SubscriptionManager) Events() <-chan Envelope {
	return m.events
}

// Close releases the subscriber handle. Idempotent and safe to invoke
// concurrently from the disconnect-detection path and an external shutdown
// path; only one of the two takes effect.
func (m *SubscriptionManager) Close() {
	m.stopOnce.Do(func() {
		close(m.done)
		if m.sub != nil {
			if err := m.sub.Close(); err != nil {
				log.Debug().Err(err).Msg("Closing subscriber handle")
			}
		}
	})
}

// pump decodes broker messages into envelopes. Malformed payloads are
// dropped and the subscription continues.
func (m *SubscriptionManager) pump() {
	defer close(m.events)

	for {
		select {
		case <-m.done:
			return
		case msg, ok := <-m.sub.Messages():
			if !ok {
				return
			}
			env, err := envelopeFromBroker(msg.Channel, msg.Payload)
			if err != nil {
				if errors.Is(err, ErrMalformedEnvelope) {
					log.Debug().Err(err).Str("channel", msg.Channel).Msg("Dropping malformed broker payload")
				} else {
					log.Warn().Err(err).Str("channel", msg.Channel).Msg("Dropping broker payload")
				}
				continue
			}
			select {
			case m.events <- env:
			case <-m.done:
				return
			default:
				// Best-effort delivery: a consumer that cannot keep up
				// loses events rather than stalling the pump.
				log.Warn().Str("channel", msg.Channel).Msg("Event buffer full, dropping envelope")
			}
		}
	}
}

// idle stands in for pump on degraded managers: no handle, no events,
// teardown still observable.
func (m *SubscriptionManager) idle() {
	<-m.done
}
