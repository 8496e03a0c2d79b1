package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPresenceTTL bounds the worst-case staleness of presence: a client
// that dies without cleanup is reported offline once the TTL lapses.
const DefaultPresenceTTL = 60 * time.Second

// PresenceStore records TTL-bounded online markers, independent of any
// single connection's lifetime. A marker survives the connection that last
// refreshed it until its TTL lapses, so graceful and ungraceful disconnects
// look the same. There is no explicit offline-marking path.
type PresenceStore interface {
	// MarkOnline sets or refreshes the online marker. Refreshing extends
	// the TTL without resetting any first-seen semantics.
	MarkOnline(ctx context.Context, userID string) error

	// IsOnline reports whether the marker exists. This is a hint, merged
	// by callers with a slower-changing durable lastSeen field.
	IsOnline(ctx context.Context, userID string) (bool, error)
}

// RedisPresence stores online markers as TTL keys in Redis, shared across
// all instances. Expiry is handled by Redis itself.
type RedisPresence struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPresence creates a Redis-backed presence store. A zero TTL
// selects the default.
func NewRedisPresence(client *redis.Client, ttl time.Duration) *RedisPresence {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &RedisPresence{client: client, ttl: ttl}
}

func (p *RedisPresence) MarkOnline(ctx context.Context, userID string) error {
	return p.client.Set(ctx, PresenceKey(userID), "1", p.ttl).Err()
}

func (p *RedisPresence) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := p.client.Exists(ctx, PresenceKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryPresence is the in-process presence store for single-instance and
// degraded no-broker deployments, with the same TTL semantics.
type MemoryPresence struct {
	mu        sync.Mutex
	deadline  map[string]time.Time
	ttl       time.Duration
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryPresence creates an in-memory presence store. A zero TTL selects
// the default. Expired entries are reaped lazily and by a periodic sweep
// that runs until Close.
func NewMemoryPresence(ttl time.Duration) *MemoryPresence {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	p := &MemoryPresence{
		deadline: make(map[string]time.Time),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	go p.sweep()
	return p
}

// Close stops the sweep goroutine. Idempotent.
func (p *MemoryPresence) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}

func (p *MemoryPresence) MarkOnline(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deadline[PresenceKey(userID)] = time.Now().Add(p.ttl)
	return nil
}

func (p *MemoryPresence) IsOnline(ctx context.Context, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := PresenceKey(userID)
	deadline, ok := p.deadline[key]
	if !ok {
		return false, nil
	}
	if time.Now().After(deadline) {
		delete(p.deadline, key)
		return false, nil
	}
	return true, nil
}

// sweep periodically removes lapsed markers so the map does not grow with
// every user ever seen.
func (p *MemoryPresence) sweep() {
	ticker := time.NewTicker(p.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			now := time.Now()
			p.mu.Lock()
			for key, deadline := range p.deadline {
				if now.After(deadline) {
					delete(p.deadline, key)
				}
			}
			p.mu.Unlock()
		}
	}
}
