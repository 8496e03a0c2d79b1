package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFrame(t *testing.T) {
	frame, err := EncodeFrame(Envelope{Type: EventPing})
	require.NoError(t, err)
	assert.Equal(t, "data: {\"type\":\"ping\"}\n\n", string(frame))
}

func TestEncodeFrame_WithData(t *testing.T) {
	env := Envelope{Type: EventNewMessage, Data: json.RawMessage(`{"content":"hi"}`)}
	frame, err := EncodeFrame(env)
	require.NoError(t, err)
	assert.Equal(t, "data: {\"type\":\"new_message\",\"data\":{\"content\":\"hi\"}}\n\n", string(frame))
}

func TestDecodeFrameData(t *testing.T) {
	env, err := DecodeFrameData(` {"type":"typing","data":{"isTyping":true}}`)
	require.NoError(t, err)
	assert.Equal(t, EventTyping, env.Type)
	assert.JSONEq(t, `{"isTyping":true}`, string(env.Data))
}

func TestDecodeFrameData_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "not-json"},
		{"empty", ""},
		{"unknown type", `{"type":"mystery"}`},
		{"missing type", `{"data":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFrameData(tt.data)
			assert.ErrorIs(t, err, ErrMalformedEnvelope)
		})
	}
}

func TestEnvelopeValid(t *testing.T) {
	assert.True(t, Envelope{Type: EventConnected, Message: "stream connected"}.Valid())
	assert.True(t, Envelope{Type: EventUserStatus, Data: json.RawMessage(`{"online":true}`)}.Valid())
	assert.False(t, Envelope{Type: "bogus"}.Valid())
	assert.False(t, Envelope{Type: EventNewMessage, Data: json.RawMessage(`{broken`)}.Valid())
}

func TestEnvelopeFromBroker(t *testing.T) {
	env, err := envelopeFromBroker("user:7:messages", []byte(`{"content":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, EventNewMessage, env.Type)
	assert.JSONEq(t, `{"content":"hello"}`, string(env.Data))
}

func TestEnvelopeFromBroker_GlobalStatus(t *testing.T) {
	env, err := envelopeFromBroker(GlobalStatusChannel, []byte(`{"userId":"7","online":true}`))
	require.NoError(t, err)
	assert.Equal(t, EventUserStatusUpdate, env.Type)
}

func TestEnvelopeFromBroker_RejectsBadPayloads(t *testing.T) {
	_, err := envelopeFromBroker("user:7:messages", []byte(`{broken`))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)

	_, err = envelopeFromBroker("user:7:unknown", []byte(`{}`))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}
