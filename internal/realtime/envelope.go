package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EventType identifies what an envelope carries.
type EventType string

const (
	// EventConnected is written once, immediately after the stream opens.
	EventConnected EventType = "connected"
	// EventNewMessage carries a stored chat message.
	EventNewMessage EventType = "new_message"
	// EventTyping carries a typing indicator.
	EventTyping EventType = "typing"
	// EventUserStatus carries a presence transition on a user's own channel.
	EventUserStatus EventType = "user_status"
	// EventUserStatusUpdate carries a presence transition on the global channel.
	EventUserStatusUpdate EventType = "user_status_update"
	// EventPing is the heartbeat. Clients filter it out.
	EventPing EventType = "ping"
)

// ErrMalformedEnvelope reports a payload that cannot become a valid
// envelope. Such payloads are dropped, never delivered.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope is the unit written to an event stream. The broker carries bare
// event objects; the fan-out layer wraps them here, deriving Type from the
// channel the event arrived on.
type Envelope struct {
	Type    EventType       `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Valid reports whether the envelope has a known type and well-formed data.
func (e Envelope) Valid() bool {
	switch e.Type {
	case EventConnected, EventNewMessage, EventTyping,
		EventUserStatus, EventUserStatusUpdate, EventPing:
	default:
		return false
	}
	if len(e.Data) > 0 && !json.Valid(e.Data) {
		return false
	}
	return true
}

// EncodeFrame renders the envelope as one wire frame: a data line followed
// by a blank line.
func EncodeFrame(e Envelope) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	frame := make([]byte, 0, len(body)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, body...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}

// DecodeFrameData parses the accumulated data of one frame back into an
// envelope.
func DecodeFrameData(data string) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if !e.Valid() {
		return Envelope{}, fmt.Errorf("%w: unknown type %q", ErrMalformedEnvelope, e.Type)
	}
	return e, nil
}

// eventTypeForChannel maps a broker channel to the envelope type its events
// are delivered under.
func eventTypeForChannel(channel string) (EventType, bool) {
	if channel == GlobalStatusChannel {
		return EventUserStatusUpdate, true
	}
	switch {
	case strings.HasSuffix(channel, ":"+CategoryMessages):
		return EventNewMessage, true
	case strings.HasSuffix(channel, ":"+CategoryTyping):
		return EventTyping, true
	case strings.HasSuffix(channel, ":"+CategoryStatus):
		return EventUserStatus, true
	}
	return "", false
}

// envelopeFromBroker wraps a bare broker payload in the envelope matching
// its channel.
func envelopeFromBroker(channel string, payload []byte) (Envelope, error) {
	typ, ok := eventTypeForChannel(channel)
	if !ok {
		return Envelope{}, fmt.Errorf("%w: no event type for channel %q", ErrMalformedEnvelope, channel)
	}
	if !json.Valid(payload) {
		return Envelope{}, fmt.Errorf("%w: invalid JSON on %q", ErrMalformedEnvelope, channel)
	}
	return Envelope{Type: typ, Data: payload}, nil
}
