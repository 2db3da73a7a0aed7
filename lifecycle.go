package pushcenter

import (
	"context"

	"github.com/agentstation/pushcenter/pkg/errors"
	"github.com/agentstation/pushcenter/pkg/events"
	"github.com/agentstation/pushcenter/pkg/logging"
)

// Compile-time interface check to ensure proper implementation.
var _ Lifecycle = (*pushCenter)(nil)

// Lifecycle starts and stops the background poll loop.
type Lifecycle interface {
	// Start begins polling in the background. It is a no-op while running.
	Start() error

	// Stop ends polling and waits for the poll loop to exit. It is a
	// no-op while stopped.
	Stop()

	// StopContext is Stop with a bounded wait.
	StopContext(ctx context.Context) error

	// IsRunning reports whether a poll loop is active.
	IsRunning() bool
}

// Start begins polling in the background and returns immediately. Every
// fresh start begins without a cursor.
func (p *pushCenter) Start() error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.running.Load() {
		return nil
	}

	url := p.URL()
	if url == "" {
		return &errors.ValidationError{
			Field:   "url",
			Message: "no endpoint configured",
		}
	}

	fetcher, err := p.fetcher(url)
	if err != nil {
		return errors.WrapResource("start", "push center", url, err)
	}

	p.mu.Lock()
	p.cursor = events.NoCursor
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	ctx = logging.WithEndpoint(logging.WithLogger(ctx, p.logger), url)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	p.running.Store(true)
	p.stats.setState(StatePolling)

	p.logger.Info().Str("endpoint", url).Msg("Polling started")
	go p.run(ctx, fetcher, done)

	return nil
}

// Stop ends polling and blocks until the poll loop has exited. No
// listener is called after Stop returns. Stop must not be called from a
// listener: the poll loop would wait on itself.
func (p *pushCenter) Stop() {
	_ = p.StopContext(context.Background())
}

// StopContext ends polling and waits for the poll loop to exit or for ctx
// to be done, whichever comes first. On ctx expiry it returns ctx.Err();
// the loop still exits on its own and IsRunning turns false when it does.
func (p *pushCenter) StopContext(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.running.Load() {
		return nil
	}

	p.stats.setState(StateDraining)
	p.cancel()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		p.logger.Warn().Err(ctx.Err()).Msg("Poll loop still draining")
		return ctx.Err()
	}
}

// IsRunning reports whether a poll loop is active.
func (p *pushCenter) IsRunning() bool {
	return p.running.Load()
}
