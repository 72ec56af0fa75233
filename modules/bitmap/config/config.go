package config

import (
	"time"

	"github.com/gaze-network/bitmap-watcher/internal/postgres"
)

type Config struct {
	Database    string          `mapstructure:"database"`     // Database to store detections. `postgres` | `memory`
	APIHandlers []string        `mapstructure:"api_handlers"` // List of API handlers to enable. (e.g. `http`)
	Postgres    postgres.Config `mapstructure:"postgres"`

	// MemorySize is the number of detections kept by the `memory` database. Default is 10000.
	MemorySize int `mapstructure:"memory_size"`

	// TipPollInterval is the block tip height polling interval. Default is 30s.
	TipPollInterval time.Duration `mapstructure:"tip_poll_interval"`

	// SearchCacheSize and SearchCacheTTL bound the BRC text search cache.
	SearchCacheSize int           `mapstructure:"search_cache_size"`
	SearchCacheTTL  time.Duration `mapstructure:"search_cache_ttl"`
}
