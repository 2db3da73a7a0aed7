// Package events defines the data model shared by the push center, the
// cursor client and listeners: opaque events, cursors, batches and the
// tagged result of a fetch.
package events

import (
	"bytes"
	"encoding/json"

	"github.com/agentstation/pushcenter/pkg/errors"
)

// Cursor is the opaque, server-issued continuation token. The zero value
// means absent: the next fetch starts from the server's retained window.
type Cursor string

// NoCursor is the absent cursor.
const NoCursor Cursor = ""

// IsZero reports whether the cursor is absent.
func (c Cursor) IsZero() bool {
	return c == NoCursor
}

// String implements fmt.Stringer.
func (c Cursor) String() string {
	if c.IsZero() {
		return "<none>"
	}
	return string(c)
}

// Event is a single notification payload. The push center never
// interprets it beyond the optional Header.
type Event struct {
	Payload json.RawMessage
}

// NewEvent wraps raw JSON as an Event.
func NewEvent(raw []byte) Event {
	return Event{Payload: json.RawMessage(raw)}
}

// MarshalJSON emits the payload unchanged.
func (e Event) MarshalJSON() ([]byte, error) {
	if len(e.Payload) == 0 {
		return []byte("null"), nil
	}
	return e.Payload, nil
}

// UnmarshalJSON keeps a copy of the raw payload.
func (e *Event) UnmarshalJSON(data []byte) error {
	e.Payload = append(e.Payload[:0], data...)
	return nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return errors.NewProtocolError("empty event payload", nil)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return errors.NewProtocolError("decode event", err)
	}
	return nil
}

// String returns the compact JSON form of the payload.
func (e Event) String() string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, e.Payload); err != nil {
		return string(e.Payload)
	}
	return buf.String()
}

// Header holds the well-known envelope fields servers attach to events.
// Every field is optional.
type Header struct {
	Type            string `json:"type,omitempty" yaml:"type,omitempty"`
	EntityType      string `json:"entityType,omitempty" yaml:"entityType,omitempty"`
	UpdateMechanism string `json:"updateMechanism,omitempty" yaml:"updateMechanism,omitempty"`
	ReceivedTime    int64  `json:"eventReceivedTime,omitempty" yaml:"eventReceivedTime,omitempty"`
}

// Header extracts the envelope fields. Payloads that are not JSON objects
// yield an empty header and an error.
func (e Event) Header() (Header, error) {
	var h Header
	if err := e.Decode(&h); err != nil {
		return Header{}, err
	}
	return h, nil
}
