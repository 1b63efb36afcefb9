package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv(lookupMap(nil), zerolog.Nop())

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.False(t, cfg.SyncEnabled)
	assert.Equal(t, BackendGCS, cfg.SyncBackend)
	assert.Equal(t, 3*time.Second, cfg.SyncDebounce)
	assert.Equal(t, "sync", cfg.SyncObjectPrefix)
	assert.Equal(t, 30*time.Minute, cfg.InsightsCacheTTL)
	assert.Equal(t, 10.0, cfg.RateLimitRPS)
	assert.False(t, cfg.SyncConfigured())
}

func TestFromEnv_Values(t *testing.T) {
	cfg := FromEnv(lookupMap(map[string]string{
		"PORT":               "9000",
		"SYNC_ENABLED":       "true",
		"SYNC_ID":            " household ",
		"SYNC_BACKEND":       "BigQuery",
		"SYNC_DEBOUNCE":      "500ms",
		"INSIGHTS_CACHE_TTL": "1h",
		"RATE_LIMIT_RPS":     "2.5",
		"RATE_LIMIT_BURST":   "4",
	}), zerolog.Nop())

	assert.Equal(t, "9000", cfg.Port)
	assert.True(t, cfg.SyncConfigured())
	assert.Equal(t, "household", cfg.SyncID)
	assert.Equal(t, BackendBigQuery, cfg.SyncBackend)
	assert.Equal(t, 500*time.Millisecond, cfg.SyncDebounce)
	assert.Equal(t, time.Hour, cfg.InsightsCacheTTL)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 4, cfg.RateLimitBurst)
}

func TestFromEnv_InvalidValuesFallBack(t *testing.T) {
	cfg := FromEnv(lookupMap(map[string]string{
		"SYNC_ENABLED":     "maybe",
		"SYNC_BACKEND":     "ftp",
		"SYNC_DEBOUNCE":    "soon",
		"RATE_LIMIT_BURST": "many",
	}), zerolog.Nop())

	assert.False(t, cfg.SyncEnabled)
	assert.Equal(t, BackendGCS, cfg.SyncBackend)
	assert.Equal(t, 3*time.Second, cfg.SyncDebounce)
	assert.Equal(t, 20, cfg.RateLimitBurst)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CASHFLOW_CONFIG_TEST=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CASHFLOW_CONFIG_TEST") })

	LoadDotEnv(zerolog.Nop(), filepath.Join(dir, "missing.env"), path)

	assert.Equal(t, "from-file", os.Getenv("CASHFLOW_CONFIG_TEST"))
}
