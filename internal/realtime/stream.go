package realtime

import (
	"bufio"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wayli-app/chatwire/internal/observability"
)

// DefaultHeartbeatInterval keeps intermediary proxies from timing out the
// stream and lets clients distinguish an idle stream from a dead one.
const DefaultHeartbeatInterval = 30 * time.Second

// Transport frames envelopes onto one server-to-client text event stream.
// Writes are best-effort: a failed write means the client is gone and
// triggers teardown. Nothing is buffered or retried for a dead client.
type Transport struct {
	conn        *Connection
	heartbeat   time.Duration
	onHeartbeat func()
	metrics     *observability.Metrics
}

// NewTransport creates a transport for a connection. A zero heartbeat
// interval selects the default.
func NewTransport(conn *Connection, heartbeat time.Duration, metrics *observability.Metrics) *Transport {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	return &Transport{
		conn:      conn,
		heartbeat: heartbeat,
		metrics:   metrics,
	}
}

// OnHeartbeat registers a hook invoked on every heartbeat tick, used to
// refresh the streaming user's presence while the stream idles.
func (t *Transport) OnHeartbeat(fn func()) {
	t.onHeartbeat = fn
}

// Run drives the stream until the client disconnects or the connection is
// torn down. The connected envelope is written immediately, before any
// subscription completes, so the client can tell "stream open" from
// "subscribed". Run always leaves the connection closed.
func (t *Transport) Run(w *bufio.Writer) {
	defer t.conn.Close()

	if err := t.write(w, Envelope{Type: EventConnected, Message: "stream connected"}); err != nil {
		return
	}

	ticker := time.NewTicker(t.heartbeat)
	defer ticker.Stop()

	events := t.conn.Events()
	for {
		select {
		case <-t.conn.Done():
			return

		case env, ok := <-events:
			if !ok {
				// Subscriber handle went away; keep the stream alive on
				// heartbeats until the client or shutdown ends it.
				events = nil
				continue
			}
			if err := t.write(w, env); err != nil {
				return
			}

		case <-ticker.C:
			if t.onHeartbeat != nil {
				t.onHeartbeat()
			}
			if err := t.write(w, Envelope{Type: EventPing}); err != nil {
				return
			}
		}
	}
}

// write frames one envelope and flushes it. A write or flush error is the
// disconnect signal for this transport.
func (t *Transport) write(w *bufio.Writer, env Envelope) error {
	frame, err := EncodeFrame(env)
	if err != nil {
		log.Error().Err(err).Str("type", string(env.Type)).Msg("Encoding frame")
		return err
	}

	if _, err = w.Write(frame); err == nil {
		err = w.Flush()
	}
	if err != nil {
		if t.metrics != nil {
			t.metrics.RecordRealtimeError("write_failed")
		}
		log.Debug().
			Err(err).
			Str("connection_id", t.conn.ID).
			Str("type", string(env.Type)).
			Msg("Stream write failed, treating as disconnect")
		return fmt.Errorf("%w: %v", ErrTransportWrite, err)
	}

	if t.metrics != nil {
		t.metrics.RecordRealtimeMessage(string(env.Type))
	}
	return nil
}

// ErrTransportWrite signals client disconnect detected at write time. It is
// never retried; teardown follows.
var ErrTransportWrite = errors.New("transport write failure")
