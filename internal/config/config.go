// Package config provides runtime configuration for the sync backend.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Config holds the knobs the sync core exposes: pull page bounds, the
// per-event transaction timeout, cache TTL and the bootstrap tenant.
type Config struct {
	Port            string
	ShutdownTimeout time.Duration

	PullMaxLimit     int
	PullDefaultLimit int
	EventTimeout     time.Duration

	MetricsCacheTTL time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	DefaultTenantID   uuid.UUID
	DefaultTenantName string
	DefaultTenantType string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvms(key string, defMs int) time.Duration {
	return time.Duration(atoienv(key, defMs)) * time.Millisecond
}

// Load collects configuration from environment with defaults.
func Load() Config {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ShutdownTimeout:   durenvms("SHUTDOWN_TIMEOUT_MS", 5000),
		PullMaxLimit:      atoienv("SYNC_PULL_MAX_LIMIT", 1000),
		PullDefaultLimit:  atoienv("SYNC_PULL_DEFAULT_LIMIT", 500),
		EventTimeout:      durenvms("SYNC_EVENT_TIMEOUT_MS", 5000),
		MetricsCacheTTL:   durenvms("METRICS_CACHE_TTL_MS", 15000),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           atoienv("REDIS_DB", 0),
		DefaultTenantName: getenv("DEFAULT_TENANT_NAME", "Default business"),
		DefaultTenantType: getenv("DEFAULT_TENANT_TYPE", "grocery"),
	}
	if raw := os.Getenv("DEFAULT_TENANT_ID"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			cfg.DefaultTenantID = id
		}
	}
	if cfg.PullMaxLimit < 1 {
		cfg.PullMaxLimit = 1000
	}
	if cfg.PullDefaultLimit < 1 || cfg.PullDefaultLimit > cfg.PullMaxLimit {
		cfg.PullDefaultLimit = min(500, cfg.PullMaxLimit)
	}
	return cfg
}
