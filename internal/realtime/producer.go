package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wayli-app/chatwire/internal/broker"
	"github.com/wayli-app/chatwire/internal/observability"
)

// Producer is the publish side of the fan-out: the CRUD handlers call it
// after their own durable work completes. Publish failures are the caller's
// to log and swallow; they must never fail the durable path.
type Producer struct {
	broker  broker.Broker
	metrics *observability.Metrics
}

// NewProducer creates a producer over a broker.
func NewProducer(b broker.Broker, metrics *observability.Metrics) *Producer {
	return &Producer{broker: b, metrics: metrics}
}

// TypingEvent is the payload published on a typing channel.
type TypingEvent struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}

// StatusEvent is the payload published on status channels.
type StatusEvent struct {
	UserID   string    `json:"userId"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"lastSeen"`
}

// MessageCreated publishes a stored message to the recipient's messages
// channel. The payload is the bare message object; the fan-out layer wraps
// it in a new_message envelope on delivery.
func (p *Producer) MessageCreated(ctx context.Context, recipientID string, message any) error {
	return p.publish(ctx, MessagesChannel(recipientID), message)
}

// TypingChanged publishes typing activity to the recipient's typing
// channel. Typing is never persisted; it exists only as a real-time hint.
func (p *Producer) TypingChanged(ctx context.Context, recipientID string, ev TypingEvent) error {
	return p.publish(ctx, TypingChannel(recipientID), ev)
}

// StatusChanged publishes a presence transition to the user's own status
// channel and to the global status channel for presence-overview streams.
func (p *Producer) StatusChanged(ctx context.Context, ev StatusEvent) error {
	if err := p.publish(ctx, StatusChannel(ev.UserID), ev); err != nil {
		return err
	}
	return p.publish(ctx, GlobalStatusChannel, ev)
}

func (p *Producer) publish(ctx context.Context, channel string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", channel, err)
	}
	if err := p.broker.Publish(ctx, channel, body); err != nil {
		if p.metrics != nil {
			p.metrics.RecordRealtimeError("publish_failed")
		}
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	if p.metrics != nil {
		if typ, ok := eventTypeForChannel(channel); ok {
			p.metrics.RecordRealtimePublish(string(typ))
		}
	}
	return nil
}
