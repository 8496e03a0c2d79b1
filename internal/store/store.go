// Package store defines the durable message store boundary. Persistence is
// an external collaborator of the fan-out layer: message sends succeed or
// fail on the store alone, never on broker health. The in-memory
// implementation backs tests and single-binary runs.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Message is one stored chat message between two users.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	SenderName  string    `json:"senderName,omitempty"`
	ReceiverID  string    `json:"receiverId"`
	Content     string    `json:"content"`
	MessageType string    `json:"messageType"`
	CreatedAt   time.Time `json:"createdAt"`
	IsRead      bool      `json:"isRead"`
}

// MessageStore is the durable storage boundary for messages.
type MessageStore interface {
	// Save persists a message, assigning ID and CreatedAt when unset.
	Save(ctx context.Context, msg *Message) error

	// Conversation returns the messages between two users, oldest first,
	// with limit/offset paging.
	Conversation(ctx context.Context, userA, userB string, limit, offset int) ([]Message, error)

	// MarkRead marks all unread messages from sender to receiver as read,
	// returning how many were updated.
	MarkRead(ctx context.Context, senderID, receiverID string) (int, error)

	// UnreadCounts returns per-sender unread message counts for a receiver.
	UnreadCounts(ctx context.Context, receiverID string) (map[string]int, error)
}

// MemoryStore is an in-memory MessageStore.
type MemoryStore struct {
	mu       sync.RWMutex
	messages []Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if msg.MessageType == "" {
		msg.MessageType = "text"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *MemoryStore) Conversation(ctx context.Context, userA, userB string, limit, offset int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Message
	for _, msg := range s.messages {
		if (msg.SenderID == userA && msg.ReceiverID == userB) ||
			(msg.SenderID == userB && msg.ReceiverID == userA) {
			result = append(result, msg)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, senderID, receiverID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for i := range s.messages {
		msg := &s.messages[i]
		if msg.SenderID == senderID && msg.ReceiverID == receiverID && !msg.IsRead {
			msg.IsRead = true
			updated++
		}
	}
	return updated, nil
}

func (s *MemoryStore) UnreadCounts(ctx context.Context, receiverID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, msg := range s.messages {
		if msg.ReceiverID == receiverID && !msg.IsRead {
			counts[msg.SenderID]++
		}
	}
	return counts, nil
}
