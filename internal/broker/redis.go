package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBroker implements Broker using Redis pub/sub.
//
// Supported backends (all use the same go-redis library):
// - Redis: the original Redis server
// - Dragonfly, Valkey, KeyDB: protocol-compatible forks
//
// Publishing uses a single shared client connection. Each Subscriber handle
// duplicates onto its own connection, because a connection in subscribe mode
// cannot issue regular commands.
type RedisBroker struct {
	client *redis.Client
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedisBroker connects to a Redis-compatible backend.
// url should be in the format: redis://[password@]host:port[/db]
func NewRedisBroker(url string) (*RedisBroker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}

	log.Info().Str("addr", opts.Addr).Msg("Connected to Redis-compatible backend for pub/sub")

	ctx, cancelRun := context.WithCancel(context.Background())
	return &RedisBroker{
		client: client,
		ctx:    ctx,
		cancel: cancelRun,
	}, nil
}

// Publish sends a message to all subscribers of a channel.
func (b *RedisBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	return nil
}

// NewSubscriber returns a handle backed by a dedicated Redis connection.
func (b *RedisBroker) NewSubscriber(ctx context.Context) (Subscriber, error) {
	// Subscribe with no channels allocates the dedicated connection lazily;
	// the handle picks channels via Subscribe.
	ps := b.client.Subscribe(b.ctx)

	sub := &redisSubscriber{
		ps:  ps,
		out: make(chan Message, subscriberBuffer),
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		sub.pump(b.ctx)
	}()

	return sub, nil
}

// Close releases the publisher connection and stops all subscriber pumps.
func (b *RedisBroker) Close() error {
	b.cancel()
	b.wg.Wait()

	err := b.client.Close()
	log.Info().Msg("Redis broker closed")
	return err
}

// Client returns the underlying Redis client, shared with the presence
// store so both ride the same connection pool.
func (b *RedisBroker) Client() *redis.Client {
	return b.client
}

type redisSubscriber struct {
	ps        *redis.PubSub
	out       chan Message
	closeOnce sync.Once
}

func (s *redisSubscriber) Subscribe(ctx context.Context, channels ...string) error {
	if err := s.ps.Subscribe(ctx, channels...); err != nil {
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	return nil
}

func (s *redisSubscriber) Unsubscribe(ctx context.Context, channels ...string) error {
	return s.ps.Unsubscribe(ctx, channels...)
}

func (s *redisSubscriber) Messages() <-chan Message {
	return s.out
}

// Close releases the dedicated connection. Safe to call more than once and
// from multiple goroutines; only the first call takes effect.
func (s *redisSubscriber) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.ps.Close()
	})
	return err
}

// pump forwards messages from the dedicated connection onto the handle's
// delivery channel until the connection or broker closes.
func (s *redisSubscriber) pump(ctx context.Context) {
	defer close(s.out)
	defer func() { _ = s.Close() }()

	msgCh := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			select {
			case s.out <- Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
			default:
				log.Warn().Str("channel", msg.Channel).Msg("Subscriber buffer full, dropping message")
			}
		}
	}
}
