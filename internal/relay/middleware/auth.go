package middleware

import (
	"crypto/subtle"
	"net/http"
	"slices"
	"strings"

	"github.com/rs/zerolog"
)

// AuthConfig holds relay token authentication configuration.
type AuthConfig struct {
	Enabled     bool
	Token       string
	HeaderName  string
	QueryParam  string
	PublicPaths []string
}

// DefaultAuthConfig returns default authentication configuration.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Enabled:     false,
		HeaderName:  "X-Relay-Token",
		QueryParam:  "token",
		PublicPaths: []string{"/healthz"},
	}
}

// Auth middleware validates the relay token for protected endpoints.
// The token may also be passed as a query parameter for EventSource and
// WebSocket clients.
func Auth(config AuthConfig, logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip authentication if disabled or for public paths
			if !config.Enabled || isPublicPath(r.URL.Path, config.PublicPaths) {
				next.ServeHTTP(w, r)
				return
			}

			// Compare in constant time
			token := extractToken(r, config)
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(config.Token)) != 1 {
				logger.Warn().
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Bool("token_provided", token != "").
					Msg("Authentication failed")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"data":null,"error":{"code":"UNAUTHORIZED","message":"Invalid or missing relay token","details":"Provide a valid token in the ` + config.HeaderName + ` header"}}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isPublicPath checks if a path is in the public paths list.
func isPublicPath(path string, publicPaths []string) bool {
	return slices.Contains(publicPaths, path)
}

// extractToken extracts the relay token from the request.
func extractToken(r *http.Request, config AuthConfig) string {
	// Try custom header first (X-Relay-Token)
	if token := r.Header.Get(config.HeaderName); token != "" {
		return token
	}

	// Support both "Bearer <token>" and raw token
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	// Browsers cannot set headers on EventSource or WebSocket requests
	if config.QueryParam != "" {
		return r.URL.Query().Get(config.QueryParam)
	}
	return ""
}
