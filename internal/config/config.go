// Package config loads process settings from the environment.
package config

import (
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
)

// Config is the full process configuration. Every field has a default
// so a bare environment still produces a runnable server.
type Config struct {
	Host         string `env:"CHATWIRE_HOST,default=0.0.0.0"`
	Port         int    `env:"CHATWIRE_PORT,default=8080"`
	DatabasePath string `env:"CHATWIRE_DB_PATH,default=./chatwire.db"`
	LogLevel     string `env:"CHATWIRE_LOG_LEVEL,default=info"`

	// Outbound per-connection buffer and write deadline.
	SendBuffer   int           `env:"CHATWIRE_SEND_BUFFER,default=100"`
	WriteTimeout time.Duration `env:"CHATWIRE_WRITE_TIMEOUT,default=5s"`

	// Per-identity inbound envelope budget. Zero disables limiting.
	RatePerSecond float64 `env:"CHATWIRE_RATE_PER_SECOND,default=10"`
	RateBurst     int     `env:"CHATWIRE_RATE_BURST,default=20"`

	ShutdownTimeout time.Duration `env:"CHATWIRE_SHUTDOWN_TIMEOUT,default=10s"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("send buffer must be positive, got %d", c.SendBuffer)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive, got %s", c.WriteTimeout)
	}
	if c.RatePerSecond < 0 {
		return fmt.Errorf("rate per second cannot be negative, got %f", c.RatePerSecond)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}

// Addr is the host:port the HTTP server binds.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
