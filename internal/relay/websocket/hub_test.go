package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agentstation/utc"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHub_BasicOperation tests basic hub operations.
func TestHub_BasicOperation(t *testing.T) {
	logger := zerolog.Nop()
	hub := NewHub(&logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go hub.Run(ctx)
	<-hub.Started()

	client := NewClient("test-1", hub, nil)
	require.True(t, hub.Register(client))
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	msg := Message{
		Type:      "UPDATE",
		ID:        "evt-1",
		Timestamp: utc.Now(),
		Data:      map[string]any{"entityType": "domain"},
	}
	require.NoError(t, hub.Broadcast(msg))

	select {
	case received := <-client.send:
		assert.Equal(t, "UPDATE", received.Type)
		assert.Equal(t, "evt-1", received.ID)
	case <-time.After(time.Second):
		t.Fatal("client did not receive message")
	}

	hub.Unregister(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, time.Millisecond)
	_, open := <-client.send
	assert.False(t, open)
}

// TestHub_Shutdown tests graceful shutdown.
func TestHub_Shutdown(t *testing.T) {
	logger := zerolog.Nop()
	hub := NewHub(&logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	<-hub.Started()

	client1 := NewClient("test-1", hub, nil)
	client2 := NewClient("test-2", hub, nil)
	require.True(t, hub.Register(client1))
	require.True(t, hub.Register(client2))
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, time.Millisecond)

	cancel()
	<-hub.done

	assert.Equal(t, 0, hub.ClientCount())
	_, open := <-client1.send
	assert.False(t, open)
	_, open = <-client2.send
	assert.False(t, open)

	assert.False(t, hub.Register(NewClient("late", hub, nil)))
	hub.Unregister(client1)
}

func TestHub_BacklogFull(t *testing.T) {
	logger := zerolog.Nop()
	hub := NewHub(&logger)

	var err error
	for i := 0; i < cap(hub.broadcast)+1; i++ {
		err = hub.Broadcast(Message{Type: "CREATE", Data: i})
	}
	assert.ErrorIs(t, err, ErrBacklog)
}

func TestHub_SlowClientDisconnected(t *testing.T) {
	logger := zerolog.Nop()
	hub := NewHub(&logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	<-hub.Started()

	slow := NewClient("slow", hub, nil)
	require.True(t, hub.Register(slow))

	for i := 0; i < cap(slow.send)+1; i++ {
		require.NoError(t, hub.Broadcast(Message{Type: "CREATE", Data: i}))
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, time.Millisecond)
}

func TestHub_ServeHTTP(t *testing.T) {
	logger := zerolog.Nop()
	hub := NewHub(&logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	<-hub.Started()

	server := httptest.NewServer(hub)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var hello Message
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "client.connected", hello.Type)
	assert.NotEmpty(t, hello.ID)
	assert.False(t, hello.Timestamp.IsZero())

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, hub.Broadcast(Message{
		Type: "DELETE",
		ID:   "evt-9",
		Data: map[string]string{"entityType": "vport"},
	}))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Type string            `json:"type"`
		ID   string            `json:"id"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "DELETE", got.Type)
	assert.Equal(t, "evt-9", got.ID)
	assert.Equal(t, "vport", got.Data["entityType"])

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, time.Millisecond)
}

func TestHub_RegisterBeforeRun(t *testing.T) {
	logger := zerolog.Nop()
	hub := NewHub(&logger)

	registered := make(chan bool, 1)
	go func() { registered <- hub.Register(NewClient("early", hub, nil)) }()

	select {
	case ok := <-registered:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Register blocked on a hub that is not running")
	}
}

func TestHub_ServeHTTPBeforeRun(t *testing.T) {
	logger := zerolog.Nop()
	hub := NewHub(&logger)

	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/ws", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHub_CheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		want    bool
	}{
		{name: "no origins configured", origin: "https://any.example.com", want: true},
		{name: "wildcard", origins: []string{"*"}, origin: "https://any.example.com", want: true},
		{name: "listed origin", origins: []string{"https://ui.example.com"}, origin: "https://ui.example.com", want: true},
		{name: "unlisted origin", origins: []string{"https://ui.example.com"}, origin: "https://evil.example.com", want: false},
		{name: "no origin header", origins: []string{"https://ui.example.com"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := zerolog.Nop()
			hub := NewHub(&logger, tt.origins...)

			req := httptest.NewRequest(http.MethodGet, "/events/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, hub.checkOrigin(req))
		})
	}
}

func TestHub_ServeHTTPRejectsOrigin(t *testing.T) {
	logger := zerolog.Nop()
	hub := NewHub(&logger, "https://ui.example.com")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	<-hub.Started()

	server := httptest.NewServer(hub)
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	header := http.Header{"Origin": {"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()
	assert.Equal(t, 0, hub.ClientCount())

	header.Set("Origin", "https://ui.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)
}
