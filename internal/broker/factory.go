package broker

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// New creates a broker based on the configured backend.
//
// Backend options:
// - "local": in-process pub/sub (default for single instance)
// - "redis": Redis-compatible pub/sub (multi-instance deployments)
// - "disabled": no fan-out; publishes report ErrBrokerUnavailable
//
// Callers that can run degraded should substitute NewDisabledBroker()
// when this returns an error, rather than failing startup.
func New(backend, redisURL string) (Broker, error) {
	switch backend {
	case "local", "":
		log.Info().Msg("Using local pub/sub (single instance mode)")
		return NewLocalBroker(), nil

	case "redis":
		if redisURL == "" {
			return nil, fmt.Errorf("redis_url is required for redis broker backend")
		}
		b, err := NewRedisBroker(redisURL)
		if err != nil {
			return nil, fmt.Errorf("connect to Redis broker: %w", err)
		}
		return b, nil

	case "disabled":
		log.Warn().Msg("Broker disabled, real-time fan-out is off")
		return NewDisabledBroker(), nil

	default:
		return nil, fmt.Errorf("unknown broker backend: %s (valid options: local, redis, disabled)", backend)
	}
}
