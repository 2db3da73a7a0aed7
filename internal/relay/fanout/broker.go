package fanout

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/pushcenter/pkg/constants"
	"github.com/agentstation/pushcenter/pkg/errors"
	"github.com/agentstation/pushcenter/pkg/events"
	"github.com/agentstation/pushcenter/pkg/logging"
)

// Sink is a downstream consumer of relayed events.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string

	// Send delivers an envelope. Implementations should not block for long.
	Send(ctx context.Context, env Envelope) error

	// Close releases the sink.
	Close() error
}

// Compile-time interface check to ensure proper implementation.
var _ events.Listener = (*Broker)(nil)

// Broker queues events and fans them out to every subscribed sink, in
// order, on the goroutine running Run.
type Broker struct {
	sinks  []Sink
	queue  chan Envelope
	mu     sync.RWMutex
	logger *zerolog.Logger
}

// NewBroker creates a broker with a queue of constants.ChannelBufferSize.
func NewBroker(logger *zerolog.Logger) *Broker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Broker{
		queue:  make(chan Envelope, constants.ChannelBufferSize),
		logger: logger,
	}
}

// OnEvent enqueues e for relay. A full queue drops the event and reports
// an error, which the push center counts as a listener failure.
func (b *Broker) OnEvent(e events.Event) error {
	env := NewEnvelope(e)
	select {
	case b.queue <- env:
		return nil
	default:
		b.logger.Warn().
			Str("event_id", env.ID).
			Str("event_type", env.Type).
			Msg("Relay queue full, event dropped")
		return fmt.Errorf("relay queue full: %w", errors.ErrUnavailable)
	}
}

// Subscribe adds a sink.
func (b *Broker) Subscribe(sink Sink) {
	b.mu.Lock()
	b.sinks = append(b.sinks, sink)
	n := len(b.sinks)
	b.mu.Unlock()

	b.logger.Info().
		Str("sink", sink.Name()).
		Int("total_sinks", n).
		Msg("Sink subscribed")
}

// Unsubscribe removes and closes a sink.
func (b *Broker) Unsubscribe(sink Sink) {
	b.mu.Lock()
	found := false
	for i, s := range b.sinks {
		if s == sink {
			b.sinks = append(b.sinks[:i:i], b.sinks[i+1:]...)
			found = true
			break
		}
	}
	n := len(b.sinks)
	b.mu.Unlock()

	if !found {
		return
	}
	if err := sink.Close(); err != nil {
		b.logger.Warn().Err(err).Str("sink", sink.Name()).Msg("Failed to close sink")
	}
	b.logger.Info().
		Str("sink", sink.Name()).
		Int("total_sinks", n).
		Msg("Sink unsubscribed")
}

// SinkCount returns the number of subscribed sinks.
func (b *Broker) SinkCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sinks)
}

// Pending returns the number of queued envelopes.
func (b *Broker) Pending() int {
	return len(b.queue)
}

// Run delivers queued envelopes until ctx is cancelled, then closes every
// sink. Should be called in a goroutine.
func (b *Broker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			sinks := b.sinks
			b.sinks = nil
			b.mu.Unlock()

			for _, s := range sinks {
				if err := s.Close(); err != nil {
					b.logger.Warn().Err(err).Str("sink", s.Name()).Msg("Failed to close sink")
				}
			}
			b.logger.Info().Msg("Relay broker shut down")
			return

		case env := <-b.queue:
			b.deliver(ctx, env)
		}
	}
}

// deliver sends env to every sink. A failing sink is logged and skipped.
func (b *Broker) deliver(ctx context.Context, env Envelope) {
	b.mu.RLock()
	sinks := make([]Sink, len(b.sinks))
	copy(sinks, b.sinks)
	b.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Send(ctx, env); err != nil {
			b.logger.Warn().
				Err(err).
				Str("sink", s.Name()).
				Str("event_id", env.ID).
				Msg("Failed to relay event")
		}
	}

	b.logger.Debug().
		Str("event_id", env.ID).
		Str("event_type", env.Type).
		Int("sinks", len(sinks)).
		Msg("Event relayed")
}
