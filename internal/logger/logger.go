// Package logger builds the zerolog loggers shared by every binary.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Output formats accepted by NewFormat.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type ctxKey struct{}

// New creates a console logger at info level.
func New() zerolog.Logger {
	return NewWithLevel(zerolog.InfoLevel)
}

// NewWithLevel creates a console logger on stdout that drops events below level.
func NewWithLevel(level zerolog.Level) zerolog.Logger {
	return NewConsole(os.Stdout, level)
}

// NewConsole creates a human-readable logger writing to w.
func NewConsole(w io.Writer, level zerolog.Level) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(level).With().Timestamp().Caller().Logger()
}

// NewJSON creates a logger emitting one JSON object per event, for log collectors.
func NewJSON(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Caller().Logger()
}

// NewFormat picks NewJSON for FormatJSON and NewConsole for anything else.
func NewFormat(w io.Writer, format string, level zerolog.Level) zerolog.Logger {
	if strings.EqualFold(strings.TrimSpace(format), FormatJSON) {
		return NewJSON(w, level)
	}
	return NewConsole(w, level)
}

// ParseLevel maps a LOG_LEVEL value to a zerolog level. Unknown or empty values
// yield info.
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// WithContext stores logger in ctx.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or an info console logger.
func FromContext(ctx context.Context) zerolog.Logger {
	return FromContextOr(ctx, New())
}

// FromContextOr returns the logger stored in ctx, or fallback.
func FromContextOr(ctx context.Context, fallback zerolog.Logger) zerolog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return logger
	}
	return fallback
}
