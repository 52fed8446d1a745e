package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Rrens/hospital-scheduler/internal/api/response"
	"github.com/Rrens/hospital-scheduler/internal/repository/redis"
	"github.com/rs/zerolog/log"
)

// Limiter decides whether one more request fits the caller's budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (redis.Decision, error)
}

// RateLimitMiddleware handles rate limiting
type RateLimitMiddleware struct {
	limiter Limiter
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(limiter Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter}
}

// Limit budgets requests per tenant and user. It must run after Authenticate.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetClaims(r.Context())
		if !ok {
			response.Unauthorized(w, "unauthorized")
			return
		}

		d, err := m.limiter.Allow(r.Context(), callerKey(claims))
		if err != nil {
			// Fail open when Redis is unavailable.
			log.Warn().Err(err).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		w.Header().Set("X-RateLimit-Reset", d.ResetAt.UTC().Format(time.RFC3339))

		if !d.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(max(1, int(time.Until(d.ResetAt).Seconds()))))
			response.TooManyRequests(w, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func callerKey(claims map[string]any) string {
	return fmt.Sprintf("%v|%v", firstClaim(claims, "tenantId", "tenant_id", "tid"), firstClaim(claims, "sub", "nameid", "userId"))
}

func firstClaim(claims map[string]any, names ...string) any {
	for _, n := range names {
		if v, ok := claims[n]; ok && v != nil {
			return v
		}
	}
	return ""
}
