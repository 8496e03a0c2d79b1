package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/wayli-app/chatwire/internal/broker"
	"github.com/wayli-app/chatwire/internal/realtime"
	"github.com/wayli-app/chatwire/internal/store"
)

// ChatHandler hosts the event-producing CRUD endpoints. Sends succeed or
// fail on the durable store alone; the publish that follows is
// fire-and-forget and its failure only costs live delivery.
type ChatHandler struct {
	store    store.MessageStore
	producer *realtime.Producer
	presence realtime.PresenceStore
}

// NewChatHandler creates the chat handler.
func NewChatHandler(messages store.MessageStore, producer *realtime.Producer, presence realtime.PresenceStore) *ChatHandler {
	return &ChatHandler{
		store:    messages,
		producer: producer,
		presence: presence,
	}
}

type sendMessageRequest struct {
	ReceiverID  string `json:"receiverId"`
	Content     string `json:"content"`
	MessageType string `json:"messageType"`
}

// SendMessage persists a message and then publishes it to the recipient's
// messages channel.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	claims, err := claimsFrom(c)
	if err != nil {
		return err
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.ReceiverID == "" || req.Content == "" {
		return fiber.NewError(fiber.StatusBadRequest, "receiverId and content are required")
	}

	msg := &store.Message{
		SenderID:    claims.UserID,
		SenderName:  claims.Name,
		ReceiverID:  req.ReceiverID,
		Content:     req.Content,
		MessageType: req.MessageType,
	}
	if err := h.store.Save(c.Context(), msg); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to store message")
	}

	h.publishMessage(msg)

	return c.Status(fiber.StatusCreated).JSON(msg)
}

// publishMessage fans the stored message out. Broker failures are logged
// and swallowed: the send already succeeded durably.
func (h *ChatHandler) publishMessage(msg *store.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.producer.MessageCreated(ctx, msg.ReceiverID, msg); err != nil {
		if errors.Is(err, broker.ErrBrokerUnavailable) {
			log.Warn().Str("receiver_id", msg.ReceiverID).Msg("Broker unavailable, message delivered on next refresh")
			return
		}
		log.Error().Err(err).Str("receiver_id", msg.ReceiverID).Msg("Message fan-out failed")
	}
}

type typingRequest struct {
	ReceiverID string `json:"receiverId"`
	IsTyping   bool   `json:"isTyping"`
}

// Typing publishes a typing indicator to the recipient. Nothing is
// persisted; a lost indicator is invisible to the user.
func (h *ChatHandler) Typing(c *fiber.Ctx) error {
	claims, err := claimsFrom(c)
	if err != nil {
		return err
	}

	var req typingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.ReceiverID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "receiverId is required")
	}

	ev := realtime.TypingEvent{
		UserID:   claims.UserID,
		UserName: claims.Name,
		IsTyping: req.IsTyping,
	}
	if err := h.producer.TypingChanged(c.Context(), req.ReceiverID, ev); err != nil {
		log.Debug().Err(err).Str("receiver_id", req.ReceiverID).Msg("Typing fan-out failed")
	}

	return c.JSON(fiber.Map{"success": true})
}

// Conversation returns the paged message history with another user, the
// pull-based reconciliation path clients use after reconnects.
func (h *ChatHandler) Conversation(c *fiber.Ctx) error {
	claims, err := claimsFrom(c)
	if err != nil {
		return err
	}

	otherID := c.Params("userID")
	if otherID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "userID is required")
	}

	limit := c.QueryInt("limit", 50)
	page := c.QueryInt("page", 1)
	if limit <= 0 || page <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "limit and page must be positive")
	}

	messages, err := h.store.Conversation(c.Context(), claims.UserID, otherID, limit, (page-1)*limit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load conversation")
	}
	if messages == nil {
		messages = []store.Message{}
	}
	return c.JSON(messages)
}

// MarkRead marks all messages from a sender to the authenticated user read.
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	claims, err := claimsFrom(c)
	if err != nil {
		return err
	}

	senderID := c.Params("senderID")
	if senderID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "senderID is required")
	}

	updated, err := h.store.MarkRead(c.Context(), senderID, claims.UserID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to mark messages read")
	}
	return c.JSON(fiber.Map{"updated": updated})
}

// UnreadCounts returns per-sender unread counts for the authenticated user.
func (h *ChatHandler) UnreadCounts(c *fiber.Ctx) error {
	claims, err := claimsFrom(c)
	if err != nil {
		return err
	}

	counts, err := h.store.UnreadCounts(c.Context(), claims.UserID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load unread counts")
	}
	return c.JSON(counts)
}

// Presence reports whether a user is online. The TTL key is the real-time
// source of truth; durable lastSeen reconciliation is the client's concern.
func (h *ChatHandler) Presence(c *fiber.Ctx) error {
	if _, err := claimsFrom(c); err != nil {
		return err
	}

	userID := c.Params("userID")
	if userID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "userID is required")
	}

	online, err := h.presence.IsOnline(c.Context(), userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Presence lookup failed")
		online = false
	}
	return c.JSON(fiber.Map{"userId": userID, "online": online})
}
