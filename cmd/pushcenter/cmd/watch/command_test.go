package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/pushcenter"
	"github.com/agentstation/pushcenter/internal/cmd/application"
	"github.com/agentstation/pushcenter/pkg/errors"
	"github.com/agentstation/pushcenter/pkg/events"
	"github.com/agentstation/pushcenter/pkg/logging"
)

// newVSD serves one CREATE event per poll with an increasing cursor. The
// entity type alternates between domain and subnet.
func newVSD(t *testing.T) *httptest.Server {
	t.Helper()
	var n atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		i := n.Add(1)
		entityType := "domain"
		if i%2 == 0 {
			entityType = "subnet"
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"events":[{"type":"CREATE","entityType":"%s","entities":[{"ID":"d%d"}]}],"uuid":"c%d"}`, entityType, i, i)
	}))
	t.Cleanup(server.Close)
	return server
}

func newMock(url string) *application.Mock {
	return &application.Mock{
		PushCenterFunc: func(opts ...pushcenter.Option) (pushcenter.PushCenter, error) {
			base := []pushcenter.Option{
				pushcenter.WithLogger(logging.NewNopLogger()),
				pushcenter.WithURL(url),
				pushcenter.WithRetryDelay(10 * time.Millisecond),
			}
			return pushcenter.New(append(base, opts...)...)
		},
	}
}

func execute(t *testing.T, app application.Application, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewCommand(app)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestWatch_JSONMaxEvents(t *testing.T) {
	server := newVSD(t)

	stdout, _, err := execute(t, newMock(server.URL), "--format", "json", "--max-events", "3")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	for i, line := range lines {
		var v struct {
			Type     string `json:"type"`
			Entities []struct {
				ID string `json:"ID"`
			} `json:"entities"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &v), line)
		assert.Equal(t, "CREATE", v.Type)
		assert.Equal(t, fmt.Sprintf("d%d", i+1), v.Entities[0].ID)
	}
}

func TestWatch_EntityTypeFilter(t *testing.T) {
	server := newVSD(t)

	stdout, _, err := execute(t, newMock(server.URL), "--format", "json", "--entity-type", "sub*", "--max-events", "2")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"ID":"d2"`)
	assert.Contains(t, lines[1], `"ID":"d4"`)
}

func TestWatch_TextFormatFromApp(t *testing.T) {
	server := newVSD(t)
	app := newMock(server.URL)
	app.OutputFormatFunc = func() string { return "text" }

	stdout, _, err := execute(t, app, "--max-events", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Create domain")
}

func TestWatch_OutputFileAndSummary(t *testing.T) {
	server := newVSD(t)
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o600))

	stdout, stderr, err := execute(t, newMock(server.URL),
		"--format", "json", "--output", path, "--max-events", "2", "--summary")
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 3, "events are appended")

	assert.Contains(t, stderr, "idle")
	assert.Contains(t, stderr, server.URL)
}

func TestWatch_InvalidFlags(t *testing.T) {
	server := newVSD(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown format", []string{"--format", "xml"}},
		{"negative max events", []string{"--max-events", "-1"}},
		{"bad entity type pattern", []string{"--entity-type", "(bad"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, newMock(server.URL), tt.args...)
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err), "got %v", err)
		})
	}
}

func TestWatch_NoURL(t *testing.T) {
	_, _, err := execute(t, &application.Mock{}, "--max-events", "1")
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err), "got %v", err)
}

func TestLimited(t *testing.T) {
	var got []string
	next := events.NewListener(func(e events.Event) error {
		got = append(got, e.String())
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	l := &limited{next: next, limit: 2, cancel: cancel}

	for _, p := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		require.NoError(t, l.OnEvent(events.NewEvent([]byte(p))))
	}
	assert.Equal(t, []string{`{"n":1}`, `{"n":2}`}, got)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
