// Package config loads cortex's runtime configuration from environment
// variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config tunes the engine's worker pool, mailbox sizing, and the
// metrics/logging surface. Tags follow caarlos0/env: env name plus a
// default applied when the variable is unset.
type Config struct {
	Workers         int    `env:"CORTEX_WORKERS" envDefault:"4"`
	MailboxSize     int    `env:"CORTEX_MAILBOX_SIZE" envDefault:"64"`
	InitialCapacity int    `env:"CORTEX_INITIAL_CAPACITY" envDefault:"1024"`
	LogLevel        string `env:"CORTEX_LOG_LEVEL" envDefault:"info"`
	MetricsAddr     string `env:"CORTEX_METRICS_ADDR" envDefault:":9090"`
}

// Load reads Config from the process environment, applying defaults for
// anything unset.
func Load() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("CORTEX_WORKERS must be >= 1, got %d", c.Workers)
	}
	if c.MailboxSize < 1 {
		return fmt.Errorf("CORTEX_MAILBOX_SIZE must be >= 1, got %d", c.MailboxSize)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("CORTEX_LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	return nil
}
