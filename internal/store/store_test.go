package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SaveAssignsDefaults(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	msg := &Message{SenderID: "1", ReceiverID: "2", Content: "hi"}
	require.NoError(t, s.Save(ctx, msg))

	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
	assert.Equal(t, "text", msg.MessageType)
	assert.False(t, msg.IsRead)
}

func TestMemoryStore_ConversationIsSymmetric(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &Message{SenderID: "1", ReceiverID: "2", Content: "a"}))
	require.NoError(t, s.Save(ctx, &Message{SenderID: "2", ReceiverID: "1", Content: "b"}))
	require.NoError(t, s.Save(ctx, &Message{SenderID: "1", ReceiverID: "3", Content: "other"}))

	msgs, err := s.Conversation(ctx, "1", "2", 50, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	// Both directions see the same history
	reversed, err := s.Conversation(ctx, "2", "1", 50, 0)
	require.NoError(t, err)
	assert.Equal(t, msgs, reversed)
}

func TestMemoryStore_ConversationOrderedAndPaged(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Now()
	for i, content := range []string{"one", "two", "three"} {
		require.NoError(t, s.Save(ctx, &Message{
			SenderID:   "1",
			ReceiverID: "2",
			Content:    content,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}))
	}

	msgs, err := s.Conversation(ctx, "1", "2", 2, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "two", msgs[1].Content)

	msgs, err = s.Conversation(ctx, "1", "2", 2, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "three", msgs[0].Content)

	msgs, err = s.Conversation(ctx, "1", "2", 2, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMemoryStore_MarkRead(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &Message{SenderID: "1", ReceiverID: "2", Content: "a"}))
	require.NoError(t, s.Save(ctx, &Message{SenderID: "1", ReceiverID: "2", Content: "b"}))
	require.NoError(t, s.Save(ctx, &Message{SenderID: "3", ReceiverID: "2", Content: "c"}))

	updated, err := s.MarkRead(ctx, "1", "2")
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	// Already-read messages are not counted again
	updated, err = s.MarkRead(ctx, "1", "2")
	require.NoError(t, err)
	assert.Equal(t, 0, updated)

	counts, err := s.UnreadCounts(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"3": 1}, counts)
}

func TestMemoryStore_UnreadCounts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	counts, err := s.UnreadCounts(ctx, "2")
	require.NoError(t, err)
	assert.Empty(t, counts)

	require.NoError(t, s.Save(ctx, &Message{SenderID: "1", ReceiverID: "2", Content: "a"}))
	require.NoError(t, s.Save(ctx, &Message{SenderID: "1", ReceiverID: "2", Content: "b"}))
	require.NoError(t, s.Save(ctx, &Message{SenderID: "3", ReceiverID: "2", Content: "c"}))
	require.NoError(t, s.Save(ctx, &Message{SenderID: "1", ReceiverID: "9", Content: "elsewhere"}))

	counts, err = s.UnreadCounts(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"1": 2, "3": 1}, counts)
}
