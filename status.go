package pushcenter

import (
	"sync"
	"sync/atomic"

	"github.com/agentstation/utc"

	"github.com/agentstation/pushcenter/pkg/events"
)

// Compile-time interface check to ensure proper implementation.
var _ Observer = (*pushCenter)(nil)

// Observer exposes the state of the poll loop.
type Observer interface {
	// Cursor returns the cursor the next fetch will send
	Cursor() events.Cursor

	// Status returns a snapshot of the poll loop state and counters
	Status() Status
}

// State is the phase of the poll loop.
type State int32

const (
	// StateIdle means no poll loop is running.
	StateIdle State = iota
	// StatePolling means the poll loop is fetching and dispatching.
	StatePolling
	// StateDraining means Stop was requested and the loop has not exited yet.
	StateDraining
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a point-in-time view of a push center.
type Status struct {
	State          State         `json:"state" yaml:"state"`
	URL            string        `json:"url" yaml:"url"`
	Cursor         events.Cursor `json:"cursor" yaml:"cursor"`
	Listeners      int           `json:"listeners" yaml:"listeners"`
	Cycles         uint64        `json:"cycles" yaml:"cycles"`
	Events         uint64        `json:"events" yaml:"events"`
	Failures       uint64        `json:"failures" yaml:"failures"`
	Resets         uint64        `json:"resets" yaml:"resets"`
	ListenerErrors uint64        `json:"listenerErrors" yaml:"listenerErrors"`
	LastError      string        `json:"lastError,omitempty" yaml:"lastError,omitempty"`
	LastSuccess    utc.Time      `json:"lastSuccess,omitzero" yaml:"lastSuccess,omitempty"`
}

// Running reports whether the status was taken while a poll loop was active.
func (s Status) Running() bool {
	return s.State != StateIdle
}

// stats are the counters kept by the poll loop.
type stats struct {
	state          atomic.Int32
	cycles         atomic.Uint64
	events         atomic.Uint64
	failures       atomic.Uint64
	resets         atomic.Uint64
	listenerErrors atomic.Uint64

	mu          sync.Mutex
	lastError   error
	lastSuccess utc.Time
}

func (s *stats) setState(state State) {
	s.state.Store(int32(state))
}

func (s *stats) State() State {
	return State(s.state.Load())
}

func (s *stats) recordSuccess(batch events.Batch, reset bool) {
	s.events.Add(uint64(batch.Len()))
	if reset {
		s.resets.Add(1)
	}

	s.mu.Lock()
	s.lastSuccess = utc.Now()
	s.lastError = nil
	s.mu.Unlock()
}

func (s *stats) recordFailure(err error) {
	s.failures.Add(1)

	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()
}

// fill copies the counters into st.
func (s *stats) fill(st *Status) {
	st.State = s.State()
	st.Cycles = s.cycles.Load()
	st.Events = s.events.Load()
	st.Failures = s.failures.Load()
	st.Resets = s.resets.Load()
	st.ListenerErrors = s.listenerErrors.Load()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastError != nil {
		st.LastError = s.lastError.Error()
	}
	st.LastSuccess = s.lastSuccess
}

// Cursor returns the cursor the next fetch will send.
func (p *pushCenter) Cursor() events.Cursor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cursor
}

// Status returns a snapshot of the poll loop state and counters.
func (p *pushCenter) Status() Status {
	p.mu.RLock()
	st := Status{URL: p.url, Cursor: p.cursor}
	p.mu.RUnlock()

	st.Listeners = p.listeners.Len()
	p.stats.fill(&st)
	return st
}
