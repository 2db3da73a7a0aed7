package events

// Listener receives every event fetched by a push center. OnEvent runs on
// the poll goroutine; a slow listener delays the next fetch. Returned
// errors and panics are logged and do not affect other listeners.
//
// Listeners are compared with ==, so implementations must be comparable
// (pointer receivers are the usual choice).
type Listener interface {
	OnEvent(Event) error
}

// funcListener gives a function a pointer identity.
type funcListener struct {
	fn func(Event) error
}

func (l *funcListener) OnEvent(e Event) error {
	return l.fn(e)
}

// NewListener adapts fn into a Listener. Each call returns a distinct
// listener, so keep the result to remove it later.
func NewListener(fn func(Event) error) Listener {
	return &funcListener{fn: fn}
}
