package realtime

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/wayli-app/chatwire/internal/observability"
)

// Registry tracks all live connections in the process. It exists so an
// external shutdown path can tear every stream down, and to feed the
// realtime gauges.
type Registry struct {
	connections map[string]*Connection
	mu          sync.RWMutex
	metrics     *observability.Metrics
}

// NewRegistry creates an empty connection registry.
func NewRegistry(metrics *observability.Metrics) *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
		metrics:     metrics,
	}
}

// Add registers a live connection.
func (r *Registry) Add(conn *Connection) {
	r.mu.Lock()
	r.connections[conn.ID] = conn
	count := len(r.connections)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SetRealtimeConnections(count)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID).
		Int("connections", count).
		Msg("Stream connection opened")
}

// Remove drops a connection from the registry. The connection's own Close
// handles teardown; removal of an unknown ID is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	_, exists := r.connections[id]
	delete(r.connections, id)
	count := len(r.connections)
	r.mu.Unlock()

	if !exists {
		return
	}
	if r.metrics != nil {
		r.metrics.SetRealtimeConnections(count)
	}
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// Shutdown closes every live connection. Safe to race with per-connection
// disconnect detection; each connection closes once.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		conns = append(conns, conn)
	}
	r.connections = make(map[string]*Connection)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}

	if r.metrics != nil {
		r.metrics.SetRealtimeConnections(0)
	}
	log.Info().Int("closed", len(conns)).Msg("Realtime registry shut down")
}
