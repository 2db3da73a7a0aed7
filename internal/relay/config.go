package relay

import (
	"github.com/agentstation/pushcenter/pkg/constants"
)

// Config holds relay server configuration.
type Config struct {
	// Listen address, e.g. ":8088"
	Addr string

	// Transports
	EnableSSE       bool
	EnableWebSocket bool

	// Redis pub/sub relay, disabled when RedisURL is empty
	RedisURL     string
	RedisChannel string

	// Token required on every route except /healthz, disabled when empty
	Token string

	// CORS origins, CORS disabled when empty
	CORSOrigins []string

	// Requests per minute per client IP, disabled when zero
	RateLimit int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            constants.DefaultRelayAddr,
		EnableSSE:       true,
		EnableWebSocket: true,
		RedisChannel:    constants.DefaultRedisChannel,
	}
}
