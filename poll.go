package pushcenter

import (
	"context"
	"time"

	"github.com/agentstation/pushcenter/pkg/cursor"
	"github.com/agentstation/pushcenter/pkg/errors"
	"github.com/agentstation/pushcenter/pkg/events"
)

// run is the poll loop. It exits once ctx is cancelled, never delivering
// an event after that.
func (p *pushCenter) run(ctx context.Context, f cursor.Fetcher, done chan struct{}) {
	defer func() {
		p.stats.setState(StateIdle)
		p.running.Store(false)
		close(done)
		p.logger.Info().Msg("Polling stopped")
	}()

	// Fetches log through the endpoint-tagged logger carried by ctx.
	fetchCtx := ctx
	if !p.options.inFlightCancel {
		fetchCtx = context.WithoutCancel(fetchCtx)
	}

	for ctx.Err() == nil {
		if !p.cycle(ctx, fetchCtx, f) {
			return
		}
	}
}

// cycle performs one fetch and handles its result. It returns false when
// the loop must exit.
func (p *pushCenter) cycle(ctx, fetchCtx context.Context, f cursor.Fetcher) bool {
	current := p.Cursor()
	p.logger.Debug().Str("cursor", current.String()).Msg("Polling events")

	res := f.Fetch(fetchCtx, current)

	// Stop arrived while the fetch was in flight; drop the result.
	if ctx.Err() != nil {
		return false
	}
	p.stats.cycles.Add(1)

	if res.Outcome != events.Success {
		err := res.Err
		if err == nil {
			err = errors.NewProtocolError("unhandled fetch outcome "+res.Outcome.String(), errors.ErrCursorRejected)
		}
		p.stats.recordFailure(err)
		p.logger.Error().
			Err(err).
			Str("cursor", current.String()).
			Dur("retry_in", p.options.retryDelay).
			Msg("Failed to poll events")
		return p.pause(ctx)
	}

	if res.Reset {
		p.logger.Info().
			Str("cursor", current.String()).
			Msg("Cursor expired, resumed from the start of the retained window")
	}
	p.logger.Debug().
		Int("count", res.Batch.Len()).
		Str("next", res.Batch.Next.String()).
		Msg("Received events")

	if !p.deliver(ctx, res.Batch.Events) {
		return false
	}

	p.mu.Lock()
	p.cursor = res.Batch.Next
	p.mu.Unlock()
	p.stats.recordSuccess(res.Batch, res.Reset)
	return true
}

// deliver dispatches events in order, checking for stop before each one.
// It returns false if stop interrupted the batch.
func (p *pushCenter) deliver(ctx context.Context, batch []events.Event) bool {
	for i, e := range batch {
		if ctx.Err() != nil {
			p.logger.Debug().
				Int("delivered", i).
				Int("dropped", len(batch)-i).
				Msg("Stop requested, dropping rest of batch")
			return false
		}
		if failed := p.listeners.Dispatch(e); failed > 0 {
			p.stats.listenerErrors.Add(uint64(failed))
		}
	}
	return true
}

// pause waits for the retry delay. It returns false if stop was requested
// during the wait.
func (p *pushCenter) pause(ctx context.Context) bool {
	timer := time.NewTimer(p.options.retryDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
