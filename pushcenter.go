// Package pushcenter long-polls a remote events endpoint and fans every
// received event out to in-process listeners.
//
// A PushCenter owns one background goroutine while running. Each cycle it
// fetches the batch following its cursor from {url}/events, hands every
// event to every registered listener in order, then advances the cursor.
// A cursor the server no longer recognises is dropped and the batch is
// fetched again from the start of the server's retained window. Any other
// failure is logged and retried after a fixed pause, indefinitely.
//
// Example usage:
//
//	pc, err := pushcenter.New(
//	    pushcenter.WithURL("https://vsd.example.com:8443/nuage/api/v6"),
//	    pushcenter.WithBasicAuth("csproot", "csproot"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	printer := events.NewListener(func(e events.Event) error {
//	    fmt.Println(e)
//	    return nil
//	})
//	if err := pc.AddListener(printer); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := pc.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer pc.Stop()
package pushcenter

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/agentstation/pushcenter/internal/listeners"
	"github.com/agentstation/pushcenter/pkg/cursor"
	"github.com/agentstation/pushcenter/pkg/errors"
	"github.com/agentstation/pushcenter/pkg/events"
	"github.com/agentstation/pushcenter/pkg/logging"
)

// Compile-time interface check to ensure proper implementation.
var (
	_ PushCenter = (*pushCenter)(nil)
	_ Listeners  = (*pushCenter)(nil)
	_ Endpoint   = (*pushCenter)(nil)
)

// PushCenter receives events from a long-polled endpoint and delivers
// them to listeners.
type PushCenter interface {

	// Listeners manages event listeners
	Listeners

	// Endpoint configures the polled endpoint
	Endpoint

	// Lifecycle starts and stops polling
	Lifecycle

	// Observer exposes cursor and counters
	Observer
}

// Listeners manages the listeners events are delivered to.
type Listeners interface {
	// AddListener registers l. Adding a listener twice has no effect.
	AddListener(l events.Listener) error

	// RemoveListener unregisters l. Removing an unknown listener has no effect.
	RemoveListener(l events.Listener)
}

// Endpoint configures the polled endpoint.
type Endpoint interface {
	// SetURL sets the base URL. It fails while polling.
	SetURL(url string) error

	// URL returns the base URL.
	URL() string
}

// pushCenter is the internal implementation of the PushCenter interface.
type pushCenter struct {
	options   *options
	logger    *zerolog.Logger
	listeners *listeners.Registry
	transport cursor.Transport

	// lifecycle, serialized by lifecycleMu
	lifecycleMu sync.Mutex
	running     atomic.Bool
	cancel      context.CancelFunc // cancels the poll loop context
	done        chan struct{}      // closed when the poll loop exits

	// endpoint and cursor
	mu     sync.RWMutex
	url    string
	cursor events.Cursor

	stats stats
}

// New creates a new PushCenter with the given options. Polling does not
// begin until Start is called.
func New(opts ...Option) (PushCenter, error) {
	o, err := defaultOptions().apply(opts...)
	if err != nil {
		return nil, errors.WrapResource("create", "push center", "", err)
	}

	logger := o.logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logging.Component(logger, "pushcenter")

	pc := &pushCenter{
		options:   o,
		logger:    logger,
		listeners: listeners.New(logger),
		url:       o.url,
	}
	if o.fetcher == nil {
		pc.transport = o.newTransport()
	}

	for _, l := range o.listeners {
		if err := pc.listeners.Add(l); err != nil {
			return nil, errors.WrapResource("register", "listener", "", err)
		}
	}

	return pc, nil
}

// AddListener registers l. Adding a listener twice has no effect.
// Listeners must be comparable; wrap functions with events.NewListener.
func (p *pushCenter) AddListener(l events.Listener) error {
	return p.listeners.Add(l)
}

// RemoveListener unregisters l. A listener removed while a batch is being
// dispatched may still receive the event currently in flight, but none
// after it.
func (p *pushCenter) RemoveListener(l events.Listener) {
	p.listeners.Remove(l)
}

// SetURL sets the base URL of the endpoint. It returns an error wrapping
// errors.ErrRunning, and leaves the URL unchanged, while polling.
func (p *pushCenter) SetURL(url string) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.running.Load() {
		return &errors.ResourceError{
			Operation: "set url of",
			Resource:  "push center",
			Message:   "stop polling first",
			Err:       errors.ErrRunning,
		}
	}

	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil
}

// URL returns the base URL of the endpoint.
func (p *pushCenter) URL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.url
}

// fetcher returns the fetcher for a new poll loop.
func (p *pushCenter) fetcher(url string) (cursor.Fetcher, error) {
	if p.options.fetcher != nil {
		return cursor.Resetting(p.options.fetcher), nil
	}
	return cursor.NewClient(url, p.transport)
}
