package config

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 1000, cfg.PullMaxLimit)
	assert.Equal(t, 500, cfg.PullDefaultLimit)
	assert.Equal(t, 5*time.Second, cfg.EventTimeout)
	assert.Equal(t, 15*time.Second, cfg.MetricsCacheTTL)
	assert.Equal(t, uuid.Nil, cfg.DefaultTenantID)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SYNC_PULL_MAX_LIMIT", "200")
	t.Setenv("SYNC_PULL_DEFAULT_LIMIT", "50")
	t.Setenv("SYNC_EVENT_TIMEOUT_MS", "250")
	t.Setenv("DEFAULT_TENANT_ID", "f2f3af92-1f41-4f5c-9f4e-0f4a6b1f2c3d")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 200, cfg.PullMaxLimit)
	assert.Equal(t, 50, cfg.PullDefaultLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.EventTimeout)
	assert.Equal(t, "f2f3af92-1f41-4f5c-9f4e-0f4a6b1f2c3d", cfg.DefaultTenantID.String())
}

func TestLoadClampsDefaultLimit(t *testing.T) {
	t.Setenv("SYNC_PULL_MAX_LIMIT", "100")
	t.Setenv("SYNC_PULL_DEFAULT_LIMIT", "500")

	cfg := Load()
	assert.Equal(t, 100, cfg.PullMaxLimit)
	assert.Equal(t, 100, cfg.PullDefaultLimit)
}

func TestLoadIgnoresGarbage(t *testing.T) {
	t.Setenv("SYNC_PULL_MAX_LIMIT", "lots")
	t.Setenv("DEFAULT_TENANT_ID", "not-a-uuid")

	cfg := Load()
	assert.Equal(t, 1000, cfg.PullMaxLimit)
	assert.Equal(t, uuid.Nil, cfg.DefaultTenantID)
}
