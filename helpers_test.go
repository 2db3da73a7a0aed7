package pushcenter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentstation/pushcenter/pkg/events"
	"github.com/agentstation/pushcenter/pkg/logging"
)

// scriptedFetcher replays a fixed list of results, then answers every
// further fetch with an empty batch that keeps the cursor.
type scriptedFetcher struct {
	mu     sync.Mutex
	script []events.Result
	calls  []events.Cursor
}

func script(results ...events.Result) *scriptedFetcher {
	return &scriptedFetcher{script: results}
}

func (f *scriptedFetcher) Fetch(_ context.Context, c events.Cursor) events.Result {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	if len(f.script) > 0 {
		r := f.script[0]
		f.script = f.script[1:]
		f.mu.Unlock()
		return r
	}
	f.mu.Unlock()

	time.Sleep(time.Millisecond)
	return events.Succeeded(events.Batch{Next: c})
}

func (f *scriptedFetcher) Calls() []events.Cursor {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]events.Cursor, len(f.calls))
	copy(out, f.calls)
	return out
}

// blockingFetcher blocks every fetch until release is closed, ignoring
// cancellation unless honorCancel is set.
type blockingFetcher struct {
	entered     chan struct{}
	release     chan struct{}
	result      events.Result
	honorCancel bool
	once        sync.Once
}

func newBlockingFetcher(result events.Result) *blockingFetcher {
	return &blockingFetcher{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		result:  result,
	}
}

func (f *blockingFetcher) Fetch(ctx context.Context, _ events.Cursor) events.Result {
	f.once.Do(func() { close(f.entered) })
	if f.honorCancel {
		select {
		case <-f.release:
		case <-ctx.Done():
			return events.Failed(ctx.Err())
		}
		return f.result
	}
	<-f.release
	return f.result
}

// recorder is a listener that records the id of every event it sees.
type recorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *recorder) OnEvent(e events.Event) error {
	var v struct {
		ID string `json:"id"`
	}
	if err := e.Decode(&v); err != nil {
		return err
	}
	r.mu.Lock()
	r.ids = append(r.ids, v.ID)
	r.mu.Unlock()
	return nil
}

func (r *recorder) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

func (r *recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

// ev builds an event carrying id.
func ev(id string) events.Event {
	return events.NewEvent([]byte(`{"id":"` + id + `"}`))
}

// batch builds a successful result.
func batch(next events.Cursor, ids ...string) events.Result {
	b := events.Batch{Next: next}
	for _, id := range ids {
		b.Events = append(b.Events, ev(id))
	}
	return events.Succeeded(b)
}

// newTestPushCenter builds a push center with a quiet logger and a short
// retry delay.
func newTestPushCenter(t *testing.T, opts ...Option) *pushCenter {
	t.Helper()
	base := []Option{
		WithURL("http://vsd.invalid/nuage/api/v6"),
		WithLogger(logging.NewNopLogger()),
		WithRetryDelay(5 * time.Millisecond),
	}
	pc, err := New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(pc.Stop)
	return pc.(*pushCenter)
}

const (
	waitFor = 2 * time.Second
	tick    = time.Millisecond
)
