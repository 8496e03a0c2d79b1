// Package api wires the HTTP surface: the event stream endpoints, the
// event-producing chat endpoints, and operational routes.
package api

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog/log"

	"github.com/wayli-app/chatwire/internal/auth"
	"github.com/wayli-app/chatwire/internal/broker"
	"github.com/wayli-app/chatwire/internal/config"
	"github.com/wayli-app/chatwire/internal/observability"
	"github.com/wayli-app/chatwire/internal/realtime"
	"github.com/wayli-app/chatwire/internal/store"
)

// Server represents the HTTP server
type Server struct {
	app      *fiber.App
	config   *config.Config
	registry *realtime.Registry
	metrics  *observability.Metrics
}

// NewServer assembles the HTTP server over an already-initialized broker,
// presence store and message store.
func NewServer(cfg *config.Config, b broker.Broker, presence realtime.PresenceStore, messages store.MessageStore) *Server {
	app := fiber.New(fiber.Config{
		ServerHeader:          "Chatwire",
		AppName:               "Chatwire v1.0.0",
		BodyLimit:             cfg.Server.BodyLimit,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		DisableStartupMessage: !cfg.Debug,
		ErrorHandler:          errorHandler,
	})

	metrics := observability.NewMetrics()
	registry := realtime.NewRegistry(metrics)
	producer := realtime.NewProducer(b, metrics)
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)

	streamHandler := realtime.NewHandler(b, presence, producer, registry, metrics, cfg.Realtime)
	chatHandler := NewChatHandler(messages, producer, presence)

	s := &Server{
		app:      app,
		config:   cfg,
		registry: registry,
		metrics:  metrics,
	}

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Cache-Control",
	}))
	app.Use(s.countRequests)

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api", RequireAuth(jwtManager))

	sse := api.Group("/sse")
	sse.Get("/notifications", streamHandler.HandleNotifications)
	sse.Get("/online-users", streamHandler.HandleOnlineUsers)

	chat := api.Group("/chat")
	chat.Post("/send", chatHandler.SendMessage)
	chat.Post("/typing", chatHandler.Typing)
	chat.Get("/conversation/:userID", chatHandler.Conversation)
	chat.Put("/read/:senderID", chatHandler.MarkRead)
	chat.Get("/unread-counts", chatHandler.UnreadCounts)

	api.Get("/users/:userID/presence", chatHandler.Presence)

	return s
}

// Start begins listening. Blocks until the listener closes.
func (s *Server) Start() error {
	return s.app.Listen(s.config.Server.Address)
}

// Shutdown closes every live stream connection, then drains the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.registry.Shutdown()
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the Fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "ok",
		"connections": s.registry.Count(),
	})
}

// countRequests records per-route request counters. Stream routes are
// counted on open, not on close.
func (s *Server) countRequests(c *fiber.Ctx) error {
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}
	}
	s.metrics.RecordHTTPRequest(c.Method(), c.Route().Path, strconv.Itoa(status))
	return err
}

// errorHandler renders errors as JSON, keeping fiber.Error status codes.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	} else {
		log.Error().Err(err).Str("path", c.Path()).Msg("Unhandled request error")
	}

	return c.Status(code).JSON(fiber.Map{"error": message})
}
