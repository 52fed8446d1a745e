package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Rrens/hospital-scheduler/internal/api/response"
	"github.com/Rrens/hospital-scheduler/internal/security"
	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	ClaimsKey      contextKey = "claims"
	AccessTokenKey contextKey = "accessToken"
)

// AuthMiddleware verifies the caller's bearer token
type AuthMiddleware struct {
	verifier *security.TokenVerifier
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(verifier *security.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Authenticate validates the JWT and stores its claims and the raw token,
// which is forwarded to the hospital-data service.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Unauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			response.Unauthorized(w, "invalid authorization header format")
			return
		}
		token := strings.TrimSpace(parts[1])

		claims, err := m.verifier.Verify(token)
		if err != nil {
			log.Debug().Err(err).Msg("token rejected")
			response.Unauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, map[string]any(claims))
		ctx = context.WithValue(ctx, AccessTokenKey, token)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClaims gets the verified claims from context
func GetClaims(ctx context.Context) (map[string]any, bool) {
	claims, ok := ctx.Value(ClaimsKey).(map[string]any)
	return claims, ok
}

// GetAccessToken gets the caller's raw bearer token from context
func GetAccessToken(ctx context.Context) string {
	token, _ := ctx.Value(AccessTokenKey).(string)
	return token
}
