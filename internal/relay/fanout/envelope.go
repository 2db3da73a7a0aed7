// Package fanout re-publishes events received by a push center to any
// number of downstream sinks (SSE, WebSocket, Redis, ...).
//
// The Broker is an events.Listener: registering it on a PushCenter is all
// it takes to relay. OnEvent only enqueues, so a slow sink never delays
// the poll loop; delivery to sinks happens on the broker's own goroutine.
package fanout

import (
	"encoding/json"
	"strings"

	"github.com/agentstation/utc"
	"github.com/google/uuid"

	"github.com/agentstation/pushcenter/pkg/events"
)

// Envelope is the relayed form of an event.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type,omitempty"`
	EntityType string          `json:"entityType,omitempty"`
	ReceivedAt utc.Time        `json:"receivedAt"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope wraps e with a fresh id and the relay receive time. The
// type fields are filled from the event header when the payload has one.
func NewEnvelope(e events.Event) Envelope {
	env := Envelope{
		ID:         uuid.NewString(),
		ReceivedAt: utc.Now(),
		Payload:    e.Payload,
	}
	if len(env.Payload) == 0 {
		env.Payload = json.RawMessage("null")
	}
	if h, err := e.Header(); err == nil {
		env.Type = h.Type
		env.EntityType = h.EntityType
	}
	return env
}

// Name returns the event name used by transports that support one. A type
// carrying a line break cannot name a frame and falls back to "event".
func (e Envelope) Name() string {
	if e.Type == "" || strings.ContainsAny(e.Type, "\r\n") {
		return "event"
	}
	return e.Type
}
