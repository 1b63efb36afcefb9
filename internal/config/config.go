// Package config reads application settings from the environment and .env files.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Sync backends.
const (
	BackendGCS      = "gcs"
	BackendBigQuery = "bigquery"
	BackendMemory   = "memory"
)

// Config holds every setting used by the binaries.
type Config struct {
	// Core
	Port         string
	LogLevel     string
	LogFormat    string
	DatabasePath string

	// Sync
	SyncEnabled      bool
	SyncID           string
	SyncBackend      string
	SyncDebounce     time.Duration
	SyncInterval     time.Duration
	GCSBucket        string
	SyncObjectPrefix string
	BQProjectID      string
	BQDatasetID      string

	// Insights
	GeminiModel      string
	InsightsCacheTTL time.Duration

	// Notion export
	NotionToken string
	NotionDBID  string

	// API
	RateLimitRPS   float64
	RateLimitBurst int
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load reads .env from the current or parent directory, then the environment.
func Load(log zerolog.Logger) *Config {
	LoadDotEnv(log, ".env", "../.env")
	return FromEnv(os.LookupEnv, log)
}

// LoadDotEnv loads the first of paths that exists. Variables already set in the
// environment are not overridden.
func LoadDotEnv(log zerolog.Logger, paths ...string) {
	for _, path := range paths {
		err := godotenv.Load(path)
		if err == nil {
			log.Debug().Str("path", path).Msg(".env file loaded")
			return
		}
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("Error loading .env file")
		}
	}
	log.Debug().Msg("No .env file found, relying on environment variables")
}

// FromEnv builds the configuration from lookup.
func FromEnv(lookup LookupFunc, log zerolog.Logger) *Config {
	e := env{lookup: lookup, log: log}

	cfg := &Config{
		Port:         e.getEnv("PORT", "8080"),
		LogLevel:     e.getEnv("LOG_LEVEL", "info"),
		LogFormat:    strings.ToLower(e.getEnv("LOG_FORMAT", "console")),
		DatabasePath: e.getEnv("DATABASE_PATH", "./cashflow.db"),

		SyncEnabled:      e.getEnvAsBool("SYNC_ENABLED", false),
		SyncID:           strings.TrimSpace(e.getEnv("SYNC_ID", "")),
		SyncBackend:      strings.ToLower(e.getEnv("SYNC_BACKEND", BackendGCS)),
		SyncDebounce:     e.getEnvAsDuration("SYNC_DEBOUNCE", 3*time.Second),
		SyncInterval:     e.getEnvAsDuration("SYNC_INTERVAL", 5*time.Minute),
		GCSBucket:        e.getEnv("GCS_BUCKET", ""),
		SyncObjectPrefix: e.getEnv("SYNC_OBJECT_PREFIX", "sync"),
		BQProjectID:      e.getEnv("BQ_PROJECT_ID", ""),
		BQDatasetID:      e.getEnv("BQ_DATASET_ID", ""),

		GeminiModel:      e.getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		InsightsCacheTTL: e.getEnvAsDuration("INSIGHTS_CACHE_TTL", 30*time.Minute),

		NotionToken: e.getEnv("NOTION_TOKEN", ""),
		NotionDBID:  e.getEnv("NOTION_DB_ID", ""),

		RateLimitRPS:   e.getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: e.getEnvAsInt("RATE_LIMIT_BURST", 20),
	}

	switch cfg.SyncBackend {
	case BackendGCS, BackendBigQuery, BackendMemory:
	default:
		log.Warn().Str("backend", cfg.SyncBackend).Msg("Unknown SYNC_BACKEND, using gcs")
		cfg.SyncBackend = BackendGCS
	}
	if cfg.SyncEnabled && cfg.SyncID == "" {
		log.Warn().Msg("SYNC_ENABLED is set but SYNC_ID is empty, sync stays disabled")
	}

	log.Debug().
		Str("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Str("log_format", cfg.LogFormat).
		Str("database_path", cfg.DatabasePath).
		Bool("sync_enabled", cfg.SyncEnabled).
		Str("sync_backend", cfg.SyncBackend).
		Msg("Configuration loaded")
	return cfg
}

// SyncConfigured reports whether sync can run.
func (c *Config) SyncConfigured() bool {
	return c.SyncEnabled && c.SyncID != ""
}

type env struct {
	lookup LookupFunc
	log    zerolog.Logger
}

// getEnv retrieves an environment variable or returns a fallback value.
func (e env) getEnv(key, fallback string) string {
	if value, ok := e.lookup(key); ok {
		return value
	}
	return fallback
}

func (e env) getEnvAsInt(key string, fallback int) int {
	s := e.getEnv(key, "")
	if s == "" {
		return fallback
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	e.log.Warn().Str("key", key).Str("value", s).Int("default", fallback).Msg("Invalid integer value, using default")
	return fallback
}

func (e env) getEnvAsFloat(key string, fallback float64) float64 {
	s := e.getEnv(key, "")
	if s == "" {
		return fallback
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	e.log.Warn().Str("key", key).Str("value", s).Float64("default", fallback).Msg("Invalid number value, using default")
	return fallback
}

func (e env) getEnvAsBool(key string, fallback bool) bool {
	s := e.getEnv(key, "")
	if s == "" {
		return fallback
	}
	if v, err := strconv.ParseBool(s); err == nil {
		return v
	}
	e.log.Warn().Str("key", key).Str("value", s).Bool("default", fallback).Msg("Invalid boolean value, using default")
	return fallback
}

func (e env) getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	s := e.getEnv(key, "")
	if s == "" {
		return fallback
	}
	if v, err := time.ParseDuration(s); err == nil {
		return v
	}
	e.log.Warn().Str("key", key).Str("value", s).Dur("default", fallback).Msg("Invalid duration value, using default")
	return fallback
}
