// Package cursor implements the cursor protocol of the events endpoint.
//
// A fetch is a GET of {endpoint}/events, carrying the last cursor in the
// uuid query parameter. The server answers with the next batch of events
// and the cursor to continue from, or with 400 Bad Request when it no
// longer recognises the cursor. A rejected cursor is not an error: the
// client immediately asks again without a cursor, exactly once, and the
// caller sees the outcome of that second request.
package cursor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/agentstation/pushcenter/pkg/constants"
	"github.com/agentstation/pushcenter/pkg/errors"
	"github.com/agentstation/pushcenter/pkg/events"
	"github.com/agentstation/pushcenter/pkg/logging"
)

// maxErrorBody caps how much of an error response ends up in an APIError.
const maxErrorBody = 512

// Fetcher fetches the batch of events following a cursor.
type Fetcher interface {
	Fetch(ctx context.Context, cursor events.Cursor) events.Result
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, cursor events.Cursor) events.Result

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, cursor events.Cursor) events.Result {
	return f(ctx, cursor)
}

// Transport sends HTTP requests. *http.Client satisfies it.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to a single events endpoint. It logs through the logger
// carried by the request context (see logging.WithLogger).
type Client struct {
	baseURL   string
	transport Transport
}

// NewClient creates a client for the endpoint rooted at baseURL.
func NewClient(baseURL string, transport Transport) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.NewValidationError("url", baseURL, "base URL cannot be empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.NewValidationError("url", baseURL, "base URL must be absolute")
	}
	if transport == nil {
		transport = http.DefaultClient
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		transport: transport,
	}, nil
}

// EventsURL returns the URL polled for events.
func (c *Client) EventsURL() string {
	return c.baseURL + constants.EventsPath
}

// Fetch requests the events after cursor, renegotiating once without a
// cursor if the server rejects it.
func (c *Client) Fetch(ctx context.Context, cursor events.Cursor) events.Result {
	return fetchWithReset(ctx, cursor, c.Request)
}

// Request performs a single fetch attempt and never resets the cursor.
func (c *Client) Request(ctx context.Context, cursor events.Cursor) events.Result {
	target := c.EventsURL()
	if !cursor.IsZero() {
		target += "?" + url.Values{constants.CursorParam: {string(cursor)}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return events.Failed(errors.WrapResource("create", "request", "GET "+target, err))
	}
	logging.FromContext(ctx).Trace().
		Str("cursor", cursor.String()).
		Msg("Requesting events")

	resp, err := c.transport.Do(req)
	if err != nil {
		// A failed round-trip often leaves a poisoned connection in the
		// pool; start the next attempt on a fresh socket.
		if closer, ok := c.transport.(interface{ CloseIdleConnections() }); ok {
			closer.CloseIdleConnections()
		}
		return events.Failed(errors.NewTransportError(http.MethodGet, target, err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		_, _ = io.Copy(io.Discard, resp.Body)
		logging.FromContext(ctx).Debug().
			Str("cursor", cursor.String()).
			Msg("Server rejected request")
		return events.Rejected()

	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return events.Failed(errors.NewAPIError(c.EventsURL(), resp.StatusCode, strings.TrimSpace(string(body))))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return events.Failed(errors.NewTransportError("read", target, err))
	}

	var batch events.Batch
	if err := json.Unmarshal(body, &batch); err != nil {
		return events.Failed(errors.NewProtocolError("decode events response", err))
	}
	return events.Succeeded(batch)
}

// Resetting wraps a single-attempt fetcher with the cursor reset rule.
func Resetting(f Fetcher) Fetcher {
	return FetcherFunc(func(ctx context.Context, cursor events.Cursor) events.Result {
		return fetchWithReset(ctx, cursor, f.Fetch)
	})
}

// fetchWithReset runs attempt and, on a rejected cursor, runs it once
// more without one. A rejection of the absent cursor cannot be
// renegotiated and becomes a failure.
func fetchWithReset(ctx context.Context, cursor events.Cursor, attempt FetcherFunc) events.Result {
	res := attempt(ctx, cursor)
	if res.Outcome != events.CursorRejected {
		return res
	}
	if cursor.IsZero() {
		return rejectedAbsent()
	}

	logging.FromContext(ctx).Debug().
		Str("cursor", cursor.String()).
		Msg("Cursor rejected, fetching without cursor")

	res = attempt(ctx, events.NoCursor)
	if res.Outcome == events.CursorRejected {
		return rejectedAbsent()
	}
	res.Reset = true
	return res
}

func rejectedAbsent() events.Result {
	return events.Failed(errors.NewProtocolError("server rejected request without cursor", errors.ErrCursorRejected))
}
