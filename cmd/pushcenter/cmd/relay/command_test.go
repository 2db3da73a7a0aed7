package relay

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/pushcenter"
	"github.com/agentstation/pushcenter/internal/cmd/application"
	"github.com/agentstation/pushcenter/pkg/constants"
	"github.com/agentstation/pushcenter/pkg/errors"
	"github.com/agentstation/pushcenter/pkg/logging"
)

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

func execute(ctx context.Context, app application.Application, args ...string) error {
	cmd := NewCommand(app)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func TestFlags_Config(t *testing.T) {
	t.Setenv("PUSHCENTER_REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("PUSHCENTER_RELAY_TOKEN", "from-env")

	f := &Flags{Addr: ":9000", RedisChannel: "ch", NoWebSocket: true, CORSOrigins: []string{"https://a.example"}, RateLimit: 30}
	cfg := f.Config()
	assert.Equal(t, ":9000", cfg.Addr)
	assert.True(t, cfg.EnableSSE)
	assert.False(t, cfg.EnableWebSocket)
	assert.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
	assert.Equal(t, "from-env", cfg.Token)
	assert.Equal(t, "ch", cfg.RedisChannel)
	assert.Equal(t, []string{"https://a.example"}, cfg.CORSOrigins)
	assert.Equal(t, 30, cfg.RateLimit)

	f.Token = "flag"
	assert.Equal(t, "flag", f.Config().Token)
}

func TestRelay_Defaults(t *testing.T) {
	cmd := NewCommand(&application.Mock{})
	addr, err := cmd.Flags().GetString("addr")
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultRelayAddr, addr)

	channel, err := cmd.Flags().GetString("redis-channel")
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultRedisChannel, channel)
}

func TestRelay_AllTransportsDisabled(t *testing.T) {
	t.Setenv("PUSHCENTER_REDIS_URL", "")
	err := execute(context.Background(), newMock("http://127.0.0.1:1"), "--no-sse", "--no-websocket")
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err), "got %v", err)
}

func TestRelay_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"negative rate limit", []string{"--rate-limit", "-1"}},
		{"bad type pattern", []string{"--addr", "127.0.0.1:0", "--type", "(bad"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := execute(context.Background(), newMock("http://127.0.0.1:1"), tt.args...)
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err), "got %v", err)
		})
	}
}

func TestRelay_NoURL(t *testing.T) {
	err := execute(context.Background(), &application.Mock{}, "--addr", "127.0.0.1:0")
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err), "got %v", err)
}

func TestRelay_RunsUntilCancelled(t *testing.T) {
	var once sync.Once
	polls := make(chan struct{})
	vsd := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		once.Do(func() { close(polls) })
		_, _ = w.Write([]byte(`{"events":[],"uuid":"A"}`))
	}))
	defer vsd.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- execute(ctx, newMock(vsd.URL), "--addr", "127.0.0.1:0")
	}()

	select {
	case <-polls:
	case <-time.After(5 * time.Second):
		t.Fatal("relay never polled")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * constants.ShutdownTimeout):
		t.Fatal("relay did not stop")
	}
}
