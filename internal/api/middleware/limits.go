package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/cashflow-planner/internal/logger"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	corsMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}, ", ")
	corsHeaders = strings.Join([]string{"Content-Type", RequestIDHeader}, ", ")
)

// CORS lets browser clients on any origin call the API and answers preflights directly.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", corsMethods)
		h.Set("Access-Control-Allow-Headers", corsHeaders)
		h.Set("Access-Control-Expose-Headers", RequestIDHeader)
		h.Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit answers 429 with a Retry-After hint once limiter has no tokens left.
func RateLimit(limiter *rate.Limiter, log zerolog.Logger) func(http.Handler) http.Handler {
	retryAfter := "1"
	if l := limiter.Limit(); l > 0 && l != rate.Inf {
		retryAfter = strconv.Itoa(int(math.Ceil(1 / float64(l))))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				l := logger.FromContextOr(r.Context(), log)
				l.Warn().Str("path", r.URL.Path).Msg("rate limit exceeded")
				w.Header().Set("Retry-After", retryAfter)
				WriteError(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
