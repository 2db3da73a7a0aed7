package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         time.Duration // preflight cache lifetime, omitted when zero
	AllowAll       bool
}

// DefaultCORSConfig returns the default CORS configuration. The relay
// only serves reads.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Relay-Token", "Last-Event-ID"},
		MaxAge:         24 * time.Hour,
	}
}

// CORS middleware adds CORS headers to responses and answers preflight
// requests without reaching the routes.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	preflight := preflightHeaders(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := w.Header()

			allowed := config.allowedOrigin(r.Header.Get("Origin"))
			if allowed != "" {
				header.Set("Access-Control-Allow-Origin", allowed)
			}
			// Anything but a wildcard answer depends on the request origin
			if allowed != "*" {
				header.Add("Vary", "Origin")
			}

			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			for key, value := range preflight {
				header.Set(key, value)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

// preflightHeaders builds the headers sent on every preflight response.
func preflightHeaders(config CORSConfig) map[string]string {
	headers := map[string]string{
		"Access-Control-Allow-Methods": strings.Join(config.AllowedMethods, ", "),
		"Access-Control-Allow-Headers": strings.Join(config.AllowedHeaders, ", "),
	}
	if config.MaxAge > 0 {
		headers["Access-Control-Max-Age"] = strconv.Itoa(int(config.MaxAge / time.Second))
	}
	return headers
}

// allowedOrigin returns the Access-Control-Allow-Origin value for origin,
// or "" when the origin is not served.
func (c CORSConfig) allowedOrigin(origin string) string {
	switch {
	case c.AllowAll || len(c.AllowedOrigins) == 0:
		return "*"
	case origin != "" && isOriginAllowed(origin, c.AllowedOrigins):
		// Credentialed browser requests reject a wildcard, so echo the origin
		return origin
	default:
		return ""
	}
}

// isOriginAllowed checks if an origin is in the allowed list.
func isOriginAllowed(origin string, allowed []string) bool {
	return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
}
