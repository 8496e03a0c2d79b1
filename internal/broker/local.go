package broker

import (
	"context"
	"sync"
)

// localSubscriber is a single in-process subscriber handle.
type localSubscriber struct {
	parent   *LocalBroker
	channels map[string]bool
	out      chan Message
	closed   bool
	mu       sync.Mutex
}

func (s *localSubscriber) Subscribe(ctx context.Context, channels ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrBrokerUnavailable
	}
	for _, ch := range channels {
		s.channels[ch] = true
	}
	return nil
}

func (s *localSubscriber) Unsubscribe(ctx context.Context, channels ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range channels {
		delete(s.channels, ch)
	}
	return nil
}

func (s *localSubscriber) Messages() <-chan Message {
	return s.out
}

func (s *localSubscriber) Close() error {
	s.parent.remove(s)
	s.closeLocal()
	return nil
}

// closeLocal marks the handle closed and closes its delivery channel.
func (s *localSubscriber) closeLocal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
}

// send attempts delivery to the handle. Returns false if the handle is
// closed, not subscribed to the channel, or its buffer is full.
func (s *localSubscriber) send(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.channels[msg.Channel] {
		return false
	}

	select {
	case s.out <- msg:
		return true
	default:
		// Buffer full, skip
		return false
	}
}

// LocalBroker implements Broker for single-instance deployments.
// Messages are only delivered within the same process.
type LocalBroker struct {
	subscribers map[*localSubscriber]struct{}
	mu          sync.RWMutex
}

// NewLocalBroker creates a new in-process broker.
func NewLocalBroker() *LocalBroker {
	return &LocalBroker{
		subscribers: make(map[*localSubscriber]struct{}),
	}
}

// Publish delivers a message to all local subscribers of the channel.
func (b *LocalBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	// Copy the set to avoid holding the lock during sends
	subs := make([]*localSubscriber, 0, len(b.subscribers))
	for sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	msg := Message{Channel: channel, Payload: payload}
	for _, sub := range subs {
		sub.send(msg)
	}
	return nil
}

// NewSubscriber returns a fresh in-process subscriber handle.
func (b *LocalBroker) NewSubscriber(ctx context.Context) (Subscriber, error) {
	sub := &localSubscriber{
		parent:   b,
		channels: make(map[string]bool),
		out:      make(chan Message, subscriberBuffer),
	}

	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	return sub, nil
}

func (b *LocalBroker) remove(sub *localSubscriber) {
	b.mu.Lock()
	delete(b.subscribers, sub)
	b.mu.Unlock()
}

// Close releases all subscriber handles.
func (b *LocalBroker) Close() error {
	b.mu.Lock()
	subs := make([]*localSubscriber, 0, len(b.subscribers))
	for sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.subscribers = make(map[*localSubscriber]struct{})
	b.mu.Unlock()

	// Close handles outside the lock to avoid deadlock with send
	for _, sub := range subs {
		sub.closeLocal()
	}
	return nil
}
