package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wayli-app/chatwire/internal/api"
	"github.com/wayli-app/chatwire/internal/broker"
	"github.com/wayli-app/chatwire/internal/config"
	"github.com/wayli-app/chatwire/internal/realtime"
	"github.com/wayli-app/chatwire/internal/store"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"

	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("Chatwire %s\n", Version)
		fmt.Printf("Commit: %s\n", Commit)
		fmt.Printf("Build Date: %s\n", BuildDate)
		os.Exit(0)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	log.Info().
		Str("version", Version).
		Str("commit", Commit).
		Msg("Starting Chatwire")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// The broker is a process-wide shared resource: initialized here,
	// passed down explicitly, torn down on shutdown. When it is
	// unreachable the service runs degraded: durable endpoints keep
	// working, only real-time fan-out is lost.
	b, err := broker.New(cfg.Broker.Backend, cfg.Broker.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("Broker unavailable, running without real-time fan-out")
		b = broker.NewDisabledBroker()
	}
	defer func() { _ = b.Close() }()

	presence := newPresenceStore(cfg, b)
	messages := store.NewMemoryStore()

	server := api.NewServer(cfg, b, presence, messages)

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Starting Chatwire server")
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// newPresenceStore picks the presence backend matching the broker: Redis
// when the broker rides Redis (markers shared across instances), otherwise
// the in-process store.
func newPresenceStore(cfg *config.Config, b broker.Broker) realtime.PresenceStore {
	if rb, ok := b.(*broker.RedisBroker); ok {
		return realtime.NewRedisPresence(rb.Client(), cfg.Realtime.PresenceTTL)
	}
	return realtime.NewMemoryPresence(cfg.Realtime.PresenceTTL)
}
