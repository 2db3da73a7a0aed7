package pushcenter

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/pushcenter/internal/transport"
	"github.com/agentstation/pushcenter/pkg/constants"
	"github.com/agentstation/pushcenter/pkg/cursor"
	"github.com/agentstation/pushcenter/pkg/errors"
	"github.com/agentstation/pushcenter/pkg/events"
)

// options holds the push center configuration.
type options struct {
	url        string
	retryDelay time.Duration
	logger     *zerolog.Logger
	listeners  []events.Listener

	// fetching
	fetcher        cursor.Fetcher   // replaces the HTTP cursor client entirely
	transport      cursor.Transport // replaces the default transport
	inFlightCancel bool             // Stop cancels an in-flight fetch

	// default transport
	httpClient  *http.Client
	httpTimeout time.Duration
	auth        transport.Authenticator
	headers     [][2]string
}

func defaultOptions() *options {
	return &options{
		retryDelay:  constants.DefaultRetryDelay,
		httpTimeout: constants.DefaultHTTPTimeout,
	}
}

// Option is a function that configures a PushCenter.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// newTransport builds the default transport from the HTTP options.
func (o *options) newTransport() cursor.Transport {
	if o.transport != nil {
		return o.transport
	}

	opts := []transport.Option{transport.WithHTTPClient(o.httpClient)}
	if o.httpTimeout > 0 {
		opts = append(opts, transport.WithTimeout(o.httpTimeout))
	}
	if o.auth != nil {
		opts = append(opts, transport.WithAuth(o.auth))
	}
	for _, h := range o.headers {
		opts = append(opts, transport.WithHeader(h[0], h[1]))
	}
	return transport.New(opts...)
}

// WithURL sets the base URL of the endpoint. Events are polled from
// {url}/events.
func WithURL(url string) Option {
	return func(o *options) error {
		if strings.TrimSpace(url) == "" {
			return &errors.ValidationError{
				Field:   "url",
				Value:   url,
				Message: "cannot be empty",
			}
		}
		o.url = url
		return nil
	}
}

// WithRetryDelay sets the pause between a failed fetch and the next attempt.
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return &errors.ValidationError{
				Field:   "retryDelay",
				Value:   d,
				Message: "must be positive",
			}
		}
		o.retryDelay = d
		return nil
	}
}

// WithFetcher replaces the HTTP cursor client. The fetcher may return
// events.CursorRejected; the push center then retries once without a
// cursor, exactly as it does for the built-in client.
func WithFetcher(f cursor.Fetcher) Option {
	return func(o *options) error {
		if f == nil {
			return &errors.ValidationError{
				Field:   "fetcher",
				Message: "cannot be nil",
			}
		}
		o.fetcher = f
		return nil
	}
}

// WithTransport sets the transport used by the cursor client. It takes
// precedence over every default transport option.
func WithTransport(t cursor.Transport) Option {
	return func(o *options) error {
		if t == nil {
			return &errors.ValidationError{
				Field:   "transport",
				Message: "cannot be nil",
			}
		}
		o.transport = t
		return nil
	}
}

// WithHTTPClient sets the http.Client wrapped by the default transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) error {
		if hc == nil {
			return &errors.ValidationError{
				Field:   "httpClient",
				Message: "cannot be nil",
			}
		}
		o.httpClient = hc
		return nil
	}
}

// WithHTTPTimeout bounds every request of the default transport. The
// default is no timeout.
func WithHTTPTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return &errors.ValidationError{
				Field:   "httpTimeout",
				Value:   d,
				Message: "cannot be negative",
			}
		}
		o.httpTimeout = d
		return nil
	}
}

// WithBearerToken authenticates requests with a bearer token.
func WithBearerToken(token string) Option {
	return func(o *options) error {
		o.auth = &transport.BearerAuth{Token: token}
		return nil
	}
}

// WithBasicAuth authenticates requests with HTTP basic authentication.
func WithBasicAuth(username, password string) Option {
	return func(o *options) error {
		if username == "" {
			return &errors.ValidationError{
				Field:   "username",
				Message: "cannot be empty",
			}
		}
		o.auth = &transport.BasicAuth{Username: username, Password: password}
		return nil
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(o *options) error {
		if key == "" {
			return &errors.ValidationError{
				Field:   "header",
				Value:   value,
				Message: "key cannot be empty",
			}
		}
		o.headers = append(o.headers, [2]string{key, value})
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithInFlightCancel makes Stop cancel a fetch that is in flight. By
// default a pending fetch runs to completion (or to the transport
// timeout) and its result is discarded.
func WithInFlightCancel(enabled bool) Option {
	return func(o *options) error {
		o.inFlightCancel = enabled
		return nil
	}
}

// WithListeners registers listeners at construction.
func WithListeners(listeners ...events.Listener) Option {
	return func(o *options) error {
		o.listeners = append(o.listeners, listeners...)
		return nil
	}
}
