// Package insights asks a language model for a short commentary on the user's
// finances.
package insights

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// Apology is returned in place of insights when generation fails.
const Apology = "Sorry, insights are unavailable right now. Please try again later."

// DefaultCacheTTL is how long generated text is reused for an unchanged dataset.
const DefaultCacheTTL = 30 * time.Minute

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Input is the data the commentary is based on.
type Input struct {
	Transactions []domain.Transaction
	Plans        []domain.RecurringPlan
	Snapshot     domain.FinancialSnapshot

	// Stamp identifies the dataset version; equal stamps reuse cached text.
	Stamp domain.Stamp
}

// Service generates and caches insights.
type Service struct {
	gen   Generator
	cache *cache.Cache
	log   zerolog.Logger
}

// NewService creates a service. A non-positive ttl uses DefaultCacheTTL.
func NewService(gen Generator, ttl time.Duration, log zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{
		gen:   gen,
		cache: cache.New(ttl, 2*ttl),
		log:   log.With().Str("component", "insights").Logger(),
	}
}

// Insights returns commentary for in. It never fails: generation errors are logged
// and answered with Apology, which is not cached.
func (s *Service) Insights(ctx context.Context, in Input) string {
	key := cacheKey(in)
	if text, ok := s.cache.Get(key); ok {
		s.log.Debug().Str("key", key).Msg("Insights served from cache")
		return text.(string)
	}

	if s.gen == nil {
		s.log.Warn().Msg("No insight generator configured")
		return Apology
	}

	text, err := s.gen.Generate(ctx, BuildPrompt(in))
	if err != nil {
		s.log.Error().Err(err).Msg("Insight generation failed")
		return Apology
	}
	text = cleanModelText(text)
	if text == "" {
		s.log.Warn().Msg("Insight generator returned no text")
		return Apology
	}

	s.cache.Set(key, text, cache.DefaultExpiration)
	return text
}

func cacheKey(in Input) string {
	return fmt.Sprintf("%s|%s|%s", strconv.FormatInt(int64(in.Stamp), 10), in.Snapshot.PeriodStart, in.Snapshot.PeriodEnd)
}
