package adapters

import (
	"context"

	"github.com/agentstation/pushcenter/internal/relay/fanout"
	ws "github.com/agentstation/pushcenter/internal/relay/websocket"
)

// WebSocketSink adapts a WebSocket hub to the fanout.Sink interface.
type WebSocketSink struct {
	hub *ws.Hub
}

// NewWebSocketSink creates a new WebSocket sink.
func NewWebSocketSink(hub *ws.Hub) *WebSocketSink {
	return &WebSocketSink{hub: hub}
}

// Name implements fanout.Sink.
func (s *WebSocketSink) Name() string { return "websocket" }

// Send converts the envelope to a WebSocket message and broadcasts it.
func (s *WebSocketSink) Send(_ context.Context, env fanout.Envelope) error {
	return s.hub.Broadcast(ws.Message{
		Type:      env.Name(),
		ID:        env.ID,
		Timestamp: env.ReceivedAt,
		Data:      env,
	})
}

// Close is a no-op. The hub is shut down by its own Run context.
func (s *WebSocketSink) Close() error {
	return nil
}
