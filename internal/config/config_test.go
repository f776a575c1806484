package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.Addr)
	assert.Equal(t, "/data", cfg.DataDir)
	assert.Equal(t, 5, cfg.SyncIntervalMin)
	assert.Equal(t, 20, cfg.DefaultPageSize)
	assert.Equal(t, 100, cfg.MaxPageSize)
	assert.Equal(t, 168, cfg.DefaultExpiryHours)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BOOKSWAP_ADDR", ":9999")
	t.Setenv("BOOKSWAP_MAX_PAGE_SIZE", "50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 50, cfg.MaxPageSize)
}
