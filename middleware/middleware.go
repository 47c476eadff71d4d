// Package middleware maps rate limit decisions onto HTTP responses.
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"learn.admission/config"
	"learn.admission/types"
)

// RequestIDHeader carries the request id set by the middleware.
const RequestIDHeader = "X-Request-ID"

// CostFunc returns the number of permits a request consumes. An error
// rejects the request with 400 before the limiter is consulted.
type CostFunc func(*http.Request) (int64, error)

// RateLimitMiddleware provides rate limiting functionality.
type RateLimitMiddleware struct {
	limiter   types.Limiter
	key       string
	algorithm config.AlgorithmType
	cost      CostFunc
}

// Option configures a RateLimitMiddleware.
type Option func(*RateLimitMiddleware)

// WithCost charges each request the permits returned by fn. A cost other
// than 1 needs a limiter implementing types.WeightedLimiter.
func WithCost(fn CostFunc) Option {
	return func(m *RateLimitMiddleware) {
		m.cost = fn
	}
}

// NewRateLimitMiddleware creates a new RateLimitMiddleware. key and
// algorithm only label log lines.
func NewRateLimitMiddleware(limiter types.Limiter, key string, algorithm config.AlgorithmType, opts ...Option) *RateLimitMiddleware {
	m := &RateLimitMiddleware{
		limiter:   limiter,
		key:       key,
		algorithm: algorithm,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle wraps next with rate limiting. identifierFunc extracts the client
// identity (e.g. IP address) from the request. Denied requests get 429;
// requests with an invalid cost get 400; requests that cannot be decided
// get 500.
func (m *RateLimitMiddleware) Handle(next http.HandlerFunc, identifierFunc func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
			r.Header.Set(RequestIDHeader, requestID)
		}
		w.Header().Set(RequestIDHeader, requestID)

		logger := log.With().
			Str("request_id", requestID).
			Str("limiter_key", m.key).
			Str("limiter_type", string(m.algorithm)).
			Logger()

		identifier := identifierFunc(r)
		if identifier == "" {
			logger.Warn().Str("remote_addr", r.RemoteAddr).Msg("Middleware: Could not extract identifier, denying request")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		cost := int64(1)
		if m.cost != nil {
			c, err := m.cost(r)
			if err != nil {
				logger.Warn().Err(err).Str("identifier", identifier).Msg("Middleware: Invalid request cost")
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			cost = c
		}

		allowed, err := m.allow(r.Context(), identifier, cost)
		if err != nil {
			logger.Error().Err(err).Str("identifier", identifier).Int64("cost", cost).Msg("Middleware: Error checking rate limit, denying request")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if !allowed {
			logger.Info().Str("identifier", identifier).Int64("cost", cost).Msg("Middleware: Request rate limited")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	}
}

func (m *RateLimitMiddleware) allow(ctx context.Context, identifier string, cost int64) (bool, error) {
	if cost == 1 {
		return m.limiter.Allow(ctx, identifier)
	}
	weighted, ok := m.limiter.(types.WeightedLimiter)
	if !ok {
		return false, fmt.Errorf("limiter '%s' cannot charge a cost of %d", m.key, cost)
	}
	return weighted.AllowN(ctx, identifier, cost)
}
