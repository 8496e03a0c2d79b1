package realtime

import (
	"bufio"
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"

	"github.com/wayli-app/chatwire/internal/auth"
	"github.com/wayli-app/chatwire/internal/broker"
	"github.com/wayli-app/chatwire/internal/config"
	"github.com/wayli-app/chatwire/internal/observability"
)

// Handler serves the server-push stream endpoints. Each request becomes one
// Connection with its own subscriber handle, heartbeat and teardown.
type Handler struct {
	broker     broker.Broker
	presence   PresenceStore
	producer   *Producer
	registry   *Registry
	metrics    *observability.Metrics
	heartbeat  time.Duration
	bufferSize int
}

// NewHandler creates the stream handler.
func NewHandler(b broker.Broker, presence PresenceStore, producer *Producer, registry *Registry, metrics *observability.Metrics, cfg config.RealtimeConfig) *Handler {
	return &Handler{
		broker:     b,
		presence:   presence,
		producer:   producer,
		registry:   registry,
		metrics:    metrics,
		heartbeat:  cfg.HeartbeatInterval,
		bufferSize: cfg.ChannelBufferSize,
	}
}

// HandleNotifications streams the authenticated user's own new_message,
// typing and user_status events.
func (h *Handler) HandleNotifications(c *fiber.Ctx) error {
	claims, err := claimsFromContext(c)
	if err != nil {
		return err
	}
	return h.stream(c, claims,
		MessagesChannel(claims.UserID),
		TypingChannel(claims.UserID),
		StatusChannel(claims.UserID),
	)
}

// HandleOnlineUsers streams user_status_update events broadcast on the
// global status channel, for presence-overview views.
func (h *Handler) HandleOnlineUsers(c *fiber.Ctx) error {
	claims, err := claimsFromContext(c)
	if err != nil {
		return err
	}
	return h.stream(c, claims, GlobalStatusChannel)
}

// stream opens the event stream for one connection. Subscribe failures do
// not abort setup: the client still gets the connected envelope and
// heartbeats, just no live delivery.
func (h *Handler) stream(c *fiber.Ctx, claims *auth.TokenClaims, channels ...string) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// The subscriber handle outlives the request context; its lifetime is
	// bound to the Connection teardown instead.
	subs, err := OpenSubscriptions(context.Background(), h.broker, h.bufferSize, channels...)
	if err != nil {
		log.Warn().
			Err(err).
			Str("user_id", claims.UserID).
			Msg("Stream opening degraded, no live delivery")
	}

	conn := NewConnection(claims.UserID, subs)
	h.registry.Add(conn)

	h.markOnline(claims)

	transport := NewTransport(conn, h.heartbeat, h.metrics)
	transport.OnHeartbeat(func() {
		h.refreshPresence(conn.UserID)
	})

	registry := h.registry
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer registry.Remove(conn.ID)
		transport.Run(w)
	}))
	return nil
}

// markOnline records presence for a freshly opened stream and, on an
// offline-to-online transition, fans the status change out.
func (h *Handler) markOnline(claims *auth.TokenClaims) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wasOnline, err := h.presence.IsOnline(ctx, claims.UserID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", claims.UserID).Msg("Presence lookup failed")
	}
	if err := h.presence.MarkOnline(ctx, claims.UserID); err != nil {
		log.Warn().Err(err).Str("user_id", claims.UserID).Msg("Presence refresh failed")
		return
	}
	if h.metrics != nil {
		h.metrics.RecordPresenceRefresh()
	}

	if !wasOnline && h.producer != nil {
		ev := StatusEvent{UserID: claims.UserID, Online: true, LastSeen: time.Now()}
		if err := h.producer.StatusChanged(ctx, ev); err != nil {
			log.Warn().Err(err).Str("user_id", claims.UserID).Msg("Status fan-out failed")
		}
	}
}

// refreshPresence extends the TTL on each heartbeat so an idle but live
// stream keeps its user online.
func (h *Handler) refreshPresence(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.presence.MarkOnline(ctx, userID); err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("Heartbeat presence refresh failed")
		return
	}
	if h.metrics != nil {
		h.metrics.RecordPresenceRefresh()
	}
}

// claimsFromContext pulls the validated credential stored by the auth
// middleware.
func claimsFromContext(c *fiber.Ctx) (*auth.TokenClaims, error) {
	claims, ok := c.Locals("claims").(*auth.TokenClaims)
	if !ok || claims == nil {
		return nil, fiber.ErrUnauthorized
	}
	return claims, nil
}
