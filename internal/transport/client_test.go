package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientAppliesHeadersAndAuth(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(
		WithAuth(&BearerAuth{Token: "abc"}),
		WithHeader("X-Nuage-Organization", "csp"),
	)

	resp, err := client.Get(context.Background(), server.URL+"/events")
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "Bearer abc", got.Get("Authorization"))
	assert.Equal(t, "csp", got.Get("X-Nuage-Organization"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Empty(t, got.Get("Content-Type"))
}

func TestClientDefaults(t *testing.T) {
	client := New()
	assert.Equal(t, time.Duration(0), client.Timeout())
	assert.IsType(t, &NoAuth{}, client.auth)

	client = New(WithTimeout(3*time.Second), WithAuth(nil), WithHTTPClient(nil))
	assert.Equal(t, 3*time.Second, client.Timeout())
	assert.IsType(t, &NoAuth{}, client.auth)
}

func TestClientWithTimeoutDoesNotMutateSharedClient(t *testing.T) {
	shared := &http.Client{}
	client := New(WithHTTPClient(shared), WithTimeout(time.Second))

	assert.Equal(t, time.Second, client.Timeout())
	assert.Equal(t, time.Duration(0), shared.Timeout)
}

func TestClientGetInvalidURL(t *testing.T) {
	_, err := New().Get(context.Background(), "://bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create request")
}

func TestClientRespectsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New().Get(ctx, server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	New().CloseIdleConnections()
}
