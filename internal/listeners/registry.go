// Package listeners holds the set of listeners a push center delivers to.
package listeners

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/pushcenter/pkg/errors"
	"github.com/agentstation/pushcenter/pkg/events"
	"github.com/agentstation/pushcenter/pkg/logging"
)

// Registry is a set of listeners keyed by identity. The backing slice is
// copy-on-write: Add and Remove publish a new slice, so Dispatch iterates
// a snapshot that concurrent mutation cannot disturb.
type Registry struct {
	mu        sync.RWMutex
	listeners []events.Listener
	logger    *zerolog.Logger
}

// New creates an empty registry. A nil logger uses the default logger.
func New(logger *zerolog.Logger) *Registry {
	if logger == nil {
		logger = logging.Default()
	}
	return &Registry{logger: logger}
}

// Add registers l unless it is already present.
func (r *Registry) Add(l events.Listener) error {
	if l == nil {
		return errors.NewValidationError("listener", nil, "listener cannot be nil")
	}
	if !reflect.TypeOf(l).Comparable() {
		return errors.NewValidationError("listener", fmt.Sprintf("%T", l),
			"listener type is not comparable; use a pointer or events.NewListener")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if indexOf(r.listeners, l) >= 0 {
		return nil
	}

	next := make([]events.Listener, len(r.listeners), len(r.listeners)+1)
	copy(next, r.listeners)
	r.listeners = append(next, l)

	r.logger.Debug().
		Str("listener", fmt.Sprintf("%T", l)).
		Int("total_listeners", len(r.listeners)).
		Msg("Listener registered")
	return nil
}

// Remove unregisters l if present.
func (r *Registry) Remove(l events.Listener) {
	if l == nil || !reflect.TypeOf(l).Comparable() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := indexOf(r.listeners, l)
	if i < 0 {
		return
	}

	next := make([]events.Listener, 0, len(r.listeners)-1)
	next = append(next, r.listeners[:i]...)
	r.listeners = append(next, r.listeners[i+1:]...)

	r.logger.Debug().
		Str("listener", fmt.Sprintf("%T", l)).
		Int("total_listeners", len(r.listeners)).
		Msg("Listener unregistered")
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}

// Snapshot returns the currently registered listeners in registration order.
func (r *Registry) Snapshot() []events.Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]events.Listener, len(r.listeners))
	copy(out, r.listeners)
	return out
}

// Dispatch delivers e to every registered listener on the calling
// goroutine and returns how many of them failed. Failures are logged
// and never stop delivery to the remaining listeners.
func (r *Registry) Dispatch(e events.Event) int {
	r.mu.RLock()
	subs := r.listeners
	r.mu.RUnlock()

	failed := 0
	for _, l := range subs {
		if err := invoke(l, e); err != nil {
			failed++
			r.logger.Error().
				Err(err).
				Str("listener", fmt.Sprintf("%T", l)).
				Msg("Listener failed to handle event")
		}
	}
	return failed
}

// invoke calls l.OnEvent, converting a panic into a ListenerError.
func invoke(l events.Listener, e events.Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &errors.ListenerError{
				Listener: fmt.Sprintf("%T", l),
				Err:      fmt.Errorf("panic: %v", p),
			}
		}
	}()

	if err := l.OnEvent(e); err != nil {
		return &errors.ListenerError{Listener: fmt.Sprintf("%T", l), Err: err}
	}
	return nil
}

// indexOf finds l by identity. Comparable types can still hold
// uncomparable values in interface fields; those never match.
func indexOf(list []events.Listener, l events.Listener) int {
	for i, existing := range list {
		if same(existing, l) {
			return i
		}
	}
	return -1
}

func same(a, b events.Listener) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}
