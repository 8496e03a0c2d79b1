package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadClean resets viper's global state so each test sees only its own
// environment.
func loadClean(t *testing.T) (*Config, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Chdir(t.TempDir()) // avoid picking up a chatwire.yaml from the repo
	return Load()
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	_, err := loadClean(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CHATWIRE_AUTH_JWT_SECRET", "test-secret")

	cfg, err := loadClean(t)
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.Server.Address)
	assert.Equal(t, time.Duration(0), cfg.Server.WriteTimeout, "write timeout must stay disabled for long-lived streams")
	assert.Equal(t, "local", cfg.Broker.Backend)
	assert.Equal(t, 30*time.Second, cfg.Realtime.HeartbeatInterval)
	assert.Equal(t, 60*time.Second, cfg.Realtime.PresenceTTL)
	assert.Equal(t, 64, cfg.Realtime.ChannelBufferSize)
	assert.False(t, cfg.Debug)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CHATWIRE_AUTH_JWT_SECRET", "test-secret")
	t.Setenv("CHATWIRE_SERVER_ADDRESS", ":9000")
	t.Setenv("CHATWIRE_BROKER_BACKEND", "redis")
	t.Setenv("CHATWIRE_BROKER_REDIS_URL", "redis://redis.internal:6379/1")
	t.Setenv("CHATWIRE_REALTIME_HEARTBEAT_INTERVAL", "10s")
	t.Setenv("CHATWIRE_DEBUG", "true")

	cfg, err := loadClean(t)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, "redis", cfg.Broker.Backend)
	assert.Equal(t, "redis://redis.internal:6379/1", cfg.Broker.RedisURL)
	assert.Equal(t, 10*time.Second, cfg.Realtime.HeartbeatInterval)
	assert.True(t, cfg.Debug)
}

func TestLoad_RejectsNonPositiveIntervals(t *testing.T) {
	t.Setenv("CHATWIRE_AUTH_JWT_SECRET", "test-secret")
	t.Setenv("CHATWIRE_REALTIME_PRESENCE_TTL", "0s")

	_, err := loadClean(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "presence_ttl")
}
