// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full server configuration. NATSURL may be empty, in which
// case the affinity store runs in process memory (single-node mode).
type Config struct {
	Port     int    `env:"PORT" envDefault:"8000"`
	ServerID string `env:"SERVER_ID" envDefault:"1"`
	SiteURL  string `env:"SITE_URL" envDefault:"http://localhost:3000"`

	NATSURL        string        `env:"NATS_URL"`
	AffinityBucket string        `env:"AFFINITY_BUCKET" envDefault:"sessionserver"`
	AffinityTTL    time.Duration `env:"AFFINITY_TTL" envDefault:"6h"`

	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"10s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"true"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
