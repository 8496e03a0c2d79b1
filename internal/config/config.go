// Package config loads Chatwire configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Debug    bool           `mapstructure:"debug"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address     string        `mapstructure:"address"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout must stay zero (disabled): event streams are long-lived
	// and kept alive by heartbeats, not by connection deadlines.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
}

// AuthConfig contains stream credential settings. Token issuance lives in
// the identity service; Chatwire only validates against the shared secret.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTExpiry time.Duration `mapstructure:"jwt_expiry"`
}

// BrokerConfig selects the pub/sub backend.
type BrokerConfig struct {
	// Backend is one of: local, redis, disabled.
	Backend  string `mapstructure:"backend"`
	RedisURL string `mapstructure:"redis_url"`
}

// RealtimeConfig contains fan-out settings.
type RealtimeConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	PresenceTTL       time.Duration `mapstructure:"presence_ttl"`
	ChannelBufferSize int           `mapstructure:"channel_buffer_size"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	viper.SetConfigName("chatwire")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/chatwire")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CHATWIRE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		log.Debug().Msg("No config file found, using defaults and environment")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.address", ":5000")
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", time.Duration(0))
	viper.SetDefault("server.idle_timeout", 65*time.Second)
	viper.SetDefault("server.body_limit", 1<<20)

	viper.SetDefault("auth.jwt_secret", "")
	viper.SetDefault("auth.jwt_expiry", 24*time.Hour)

	viper.SetDefault("broker.backend", "local")
	viper.SetDefault("broker.redis_url", "redis://localhost:6379")

	viper.SetDefault("realtime.heartbeat_interval", 30*time.Second)
	viper.SetDefault("realtime.presence_ttl", 60*time.Second)
	viper.SetDefault("realtime.channel_buffer_size", 64)

	viper.SetDefault("debug", false)
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (set CHATWIRE_AUTH_JWT_SECRET)")
	}
	if c.Realtime.HeartbeatInterval <= 0 {
		return fmt.Errorf("realtime.heartbeat_interval must be positive")
	}
	if c.Realtime.PresenceTTL <= 0 {
		return fmt.Errorf("realtime.presence_ttl must be positive")
	}
	return nil
}

// loadEnvFile loads a .env file from the working directory when present.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); err != nil {
		return err
	}
	return godotenv.Load()
}
