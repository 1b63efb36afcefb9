package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	log := New()
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestNewWithLevel(t *testing.T) {
	log := NewWithLevel(zerolog.WarnLevel)
	assert.Equal(t, zerolog.WarnLevel, log.GetLevel())
}

func TestNewConsole(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewConsole(buf, zerolog.InfoLevel)

	log.Debug().Msg("hidden")
	log.Info().Msg("Dataset merged")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "Dataset merged")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewJSON(buf, zerolog.InfoLevel)

	log.Debug().Msg("hidden")
	log.Info().Str("sync_id", "household").Msg("Sync completed")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"sync_id":"household"`)
}

func TestNewFormat(t *testing.T) {
	tests := []struct {
		format   string
		wantJSON bool
	}{
		{format: "json", wantJSON: true},
		{format: " JSON ", wantJSON: true},
		{format: "console"},
		{format: ""},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			buf := &bytes.Buffer{}
			log := NewFormat(buf, tt.format, zerolog.InfoLevel)
			log.Info().Msg("Plan applied")
			assert.Equal(t, tt.wantJSON, strings.HasPrefix(buf.String(), "{"), buf.String())
		})
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewJSON(buf, zerolog.InfoLevel))

	log := FromContext(ctx)
	log.Info().Msg("test")
	assert.NotZero(t, buf.Len())
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	assert.NotEqual(t, zerolog.Disabled, log.GetLevel())
}

func TestFromContextOr(t *testing.T) {
	buf := &bytes.Buffer{}
	fallback := NewJSON(buf, zerolog.InfoLevel)

	log := FromContextOr(context.Background(), fallback)
	log.Info().Msg("fallback used")
	assert.Contains(t, buf.String(), "fallback used")
}
