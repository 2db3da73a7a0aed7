package adapters

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/pushcenter/internal/relay/fanout"
	"github.com/agentstation/pushcenter/internal/relay/sse"
	ws "github.com/agentstation/pushcenter/internal/relay/websocket"
	pkgerrors "github.com/agentstation/pushcenter/pkg/errors"
	"github.com/agentstation/pushcenter/pkg/events"
)

// Compile-time interface checks.
var (
	_ fanout.Sink = (*SSESink)(nil)
	_ fanout.Sink = (*WebSocketSink)(nil)
	_ fanout.Sink = (*RedisSink)(nil)
	_ Publisher   = (*redis.Client)(nil)
)

func envelope(t *testing.T, payload string) fanout.Envelope {
	t.Helper()
	return fanout.NewEnvelope(events.NewEvent([]byte(payload)))
}

func TestSSESink_Send(t *testing.T) {
	logger := zerolog.Nop()
	b := sse.NewBroadcaster(&logger)
	sink := NewSSESink(b)
	assert.Equal(t, "sse", sink.Name())

	env := envelope(t, `{"type":"CREATE","entityType":"domain"}`)
	require.NoError(t, sink.Send(context.Background(), env))
	require.NoError(t, sink.Send(context.Background(), envelope(t, `null`)))

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
}

func TestSSESink_SendTypeWithLineBreak(t *testing.T) {
	logger := zerolog.Nop()
	b := sse.NewBroadcaster(&logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)
	<-b.Started()

	server := httptest.NewServer(b)
	defer server.Close()

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer reqCancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	reader := bufio.NewReader(resp.Body)
	readFrame := func() []string {
		var lines []string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			if line == "" {
				return lines
			}
			lines = append(lines, line)
		}
	}
	require.Equal(t, "event: connected", readFrame()[0])
	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, time.Millisecond)

	sink := NewSSESink(b)
	env := envelope(t, `{"type":"CREATE\n\nevent: forged\ndata: {\"evil\":true}","entityType":"domain"}`)
	require.NoError(t, sink.Send(context.Background(), env))
	require.NoError(t, sink.Send(context.Background(), envelope(t, `{"type":"UPDATE"}`)))

	// One frame per envelope; nothing from the payload becomes a field.
	frame := readFrame()
	require.Len(t, frame, 3)
	assert.Equal(t, "event: event", frame[0])
	assert.Equal(t, "id: "+env.ID, frame[1])
	assert.True(t, strings.HasPrefix(frame[2], "data: "))

	frame = readFrame()
	require.NotEmpty(t, frame)
	assert.Equal(t, "event: UPDATE", frame[0])
}

func TestSSESink_Backlog(t *testing.T) {
	logger := zerolog.Nop()
	sink := NewSSESink(sse.NewBroadcaster(&logger))

	var err error
	env := envelope(t, `{}`)
	for i := 0; i < 1000 && err == nil; i++ {
		err = sink.Send(context.Background(), env)
	}
	assert.ErrorIs(t, err, sse.ErrBacklog)
}

func TestWebSocketSink_Send(t *testing.T) {
	logger := zerolog.Nop()
	hub := ws.NewHub(&logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	<-hub.Started()

	client := ws.NewClient("c1", hub, nil)
	require.True(t, hub.Register(client))
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	sink := NewWebSocketSink(hub)
	assert.Equal(t, "websocket", sink.Name())

	env := envelope(t, `{"type":"DELETE","entityType":"vport"}`)
	require.NoError(t, sink.Send(context.Background(), env))
	require.NoError(t, sink.Close())

	// The hub stays usable after the sink is closed.
	assert.Equal(t, 1, hub.ClientCount())
}

// fakePublisher records published messages.
type fakePublisher struct {
	mu       sync.Mutex
	channels []string
	messages [][]byte
	err      error
	closed   bool
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.channels = append(f.channels, channel)
	if data, ok := message.([]byte); ok {
		f.messages = append(f.messages, data)
	}
	cmd.SetVal(1)
	return cmd
}

func (f *fakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestRedisSink_Send(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewRedisSink(pub, "pushcenter.events")
	assert.Equal(t, "redis", sink.Name())

	env := envelope(t, `{"type":"UPDATE","entityType":"enterprise"}`)
	require.NoError(t, sink.Send(context.Background(), env))

	assert.Equal(t, []string{"pushcenter.events", "pushcenter.events.enterprise"}, pub.channels)
	require.Len(t, pub.messages, 2)

	var got fanout.Envelope
	require.NoError(t, json.Unmarshal(pub.messages[0], &got))
	assert.Equal(t, env.ID, got.ID)
	assert.Equal(t, "UPDATE", got.Type)
	assert.Equal(t, "enterprise", got.EntityType)
}

func TestRedisSink_Channels(t *testing.T) {
	sink := NewRedisSink(&fakePublisher{}, "nuage")

	assert.Equal(t, []string{"nuage"}, sink.Channels(envelope(t, `{"type":"CREATE"}`)))
	assert.Equal(t, []string{"nuage", "nuage.domain"}, sink.Channels(envelope(t, `{"entityType":"domain"}`)))
}

func TestRedisSink_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection refused")}
	sink := NewRedisSink(pub, "nuage")

	err := sink.Send(context.Background(), envelope(t, `{}`))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsUnavailable(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRedisSink_Close(t *testing.T) {
	pub := &fakePublisher{}
	require.NoError(t, NewRedisSink(pub, "nuage").Close())
	assert.True(t, pub.closed)
}
