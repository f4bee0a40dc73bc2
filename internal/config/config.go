// Package config loads exchanged's process configuration from the
// environment, the way a small single-binary service typically does: one
// flat struct, one parse call, fail fast on anything missing.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the full set of settings exchanged needs to boot.
type Config struct {
	// Ticker is the single instrument this process's book serves.
	Ticker string `env:"TICKER" envDefault:"AAPL"`

	// StorageDSN is the sqlite3 data source name for the event sink.
	StorageDSN string `env:"DATABASE_URL" envDefault:"exchanged.db"`

	// PoolSize caps concurrent connections to the event sink. The sink
	// itself pins this to 1 regardless, for WAL-mode single-writer
	// semantics, but the setting is kept for parity with deployments that
	// may swap in a differently-postured sink.
	PoolSize int `env:"DATABASE_CONNECTION_POOL_SIZE" envDefault:"1"`

	// QueueBuffer sizes the gateway's inbound command queue.
	QueueBuffer int `env:"QUEUE_BUFFER" envDefault:"256"`

	// HTTPAddr is the listen address for the REST API.
	HTTPAddr string `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
}

// Load parses Config from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}
