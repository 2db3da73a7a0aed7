// Package constants provides shared constants used throughout the pushcenter codebase.
// This includes the polling protocol names, retry timings, relay buffer sizes and
// other values that should be consistent across the library and the CLI.
package constants

import "time"

// Protocol constants describe the events endpoint contract.
const (
	// EventsPath is appended to the configured base URL for every poll
	EventsPath = "/events"

	// CursorParam is the query parameter carrying the cursor
	CursorParam = "uuid"
)

// Timing constants used by the poll loop and its collaborators.
const (
	// DefaultRetryDelay is the flat pause after a failed poll cycle
	DefaultRetryDelay = 2 * time.Second

	// DefaultHTTPTimeout is the client timeout of the default transport.
	// Zero means no timeout: long-polls are held open by the server.
	DefaultHTTPTimeout time.Duration = 0

	// ShutdownTimeout bounds graceful shutdown of the CLI and relay server
	ShutdownTimeout = 5 * time.Second

	// ReadHeaderTimeout is used by the relay HTTP server
	ReadHeaderTimeout = 10 * time.Second
)

// Relay constants define buffer sizes and websocket timings.
const (
	// ChannelBufferSize is the default buffer size for relay channels
	ChannelBufferSize = 256

	// ClientBufferSize is the per-client buffer for SSE and websocket clients
	ClientBufferSize = 64

	// WebSocketWriteWait is the time allowed to write a message to the peer
	WebSocketWriteWait = 10 * time.Second

	// WebSocketPongWait is the time allowed to read the next pong from the peer
	WebSocketPongWait = 60 * time.Second

	// WebSocketPingPeriod must be less than WebSocketPongWait
	WebSocketPingPeriod = (WebSocketPongWait * 9) / 10

	// WebSocketMaxMessageSize is the maximum inbound message size
	WebSocketMaxMessageSize = 512

	// DefaultRelayAddr is where the relay server listens by default
	DefaultRelayAddr = ":8088"

	// DefaultRedisChannel is the pub/sub channel prefix for the Redis relay
	DefaultRedisChannel = "pushcenter.events"
)

// File permission constants define standard Unix file permissions
const (
	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)
