// Package adapters connects relay transports to the fan-out broker.
package adapters

import (
	"context"

	"github.com/agentstation/pushcenter/internal/relay/fanout"
	"github.com/agentstation/pushcenter/internal/relay/sse"
)

// SSESink adapts an SSE broadcaster to the fanout.Sink interface.
type SSESink struct {
	broadcaster *sse.Broadcaster
}

// NewSSESink creates a new SSE sink.
func NewSSESink(broadcaster *sse.Broadcaster) *SSESink {
	return &SSESink{broadcaster: broadcaster}
}

// Name implements fanout.Sink.
func (s *SSESink) Name() string { return "sse" }

// Send converts the envelope to an SSE event and broadcasts it.
func (s *SSESink) Send(_ context.Context, env fanout.Envelope) error {
	return s.broadcaster.Broadcast(sse.Event{
		Event: env.Name(),
		ID:    env.ID,
		Data:  env,
	})
}

// Close is a no-op. The broadcaster is shut down by its own Run context.
func (s *SSESink) Close() error {
	return nil
}
