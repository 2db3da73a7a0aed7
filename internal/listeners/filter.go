package listeners

import (
	"github.com/agentstation/pushcenter/internal/matcher"
	"github.com/agentstation/pushcenter/pkg/events"
)

// Filter forwards an event to the next listener only when its type and
// entity type match the configured patterns. Matching is case-insensitive.
// Payloads that are not JSON objects never match a non-empty filter.
type Filter struct {
	next        events.Listener
	types       *matcher.Set
	entityTypes *matcher.Set
}

// NewFilter wraps next. Empty pattern lists match every value.
func NewFilter(next events.Listener, types, entityTypes []string) (*Filter, error) {
	opts := matcher.Options{CaseInsensitive: true}
	t, err := matcher.NewSet(types, opts)
	if err != nil {
		return nil, err
	}
	et, err := matcher.NewSet(entityTypes, opts)
	if err != nil {
		return nil, err
	}
	return &Filter{next: next, types: t, entityTypes: et}, nil
}

// Empty reports whether the filter lets every event through.
func (f *Filter) Empty() bool {
	return f.types.Len() == 0 && f.entityTypes.Len() == 0
}

// OnEvent implements events.Listener.
func (f *Filter) OnEvent(e events.Event) error {
	if f.Empty() {
		return f.next.OnEvent(e)
	}
	h, err := e.Header()
	if err != nil {
		return nil
	}
	if !f.types.Match(h.Type) || !f.entityTypes.Match(h.EntityType) {
		return nil
	}
	return f.next.OnEvent(e)
}

// Wrap returns next unchanged when no patterns are given, and a Filter
// around it otherwise.
func Wrap(next events.Listener, types, entityTypes []string) (events.Listener, error) {
	f, err := NewFilter(next, types, entityTypes)
	if err != nil {
		return nil, err
	}
	if f.Empty() {
		return next, nil
	}
	return f, nil
}
