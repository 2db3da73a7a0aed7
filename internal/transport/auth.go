package transport

import (
	"encoding/base64"
	"net/http"
)

// Authenticator applies authentication to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request)
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ *http.Request) {}

// BearerAuth implements Bearer token authentication.
type BearerAuth struct {
	Token string
}

// Apply implements the Authenticator interface for BearerAuth.
func (a *BearerAuth) Apply(req *http.Request) {
	if a.Token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
}

// BasicAuth implements HTTP basic authentication.
type BasicAuth struct {
	Username string
	Password string
}

// Apply implements the Authenticator interface for BasicAuth.
func (a *BasicAuth) Apply(req *http.Request) {
	if a.Username == "" {
		return
	}
	req.SetBasicAuth(a.Username, a.Password)
}

// HeaderAuth sends a credential in a custom header, optionally with a
// scheme prefix ("XREST", "Token", ...). With Encode set the value is
// base64 encoded first.
type HeaderAuth struct {
	Header string
	Scheme string
	Value  string
	Encode bool
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a *HeaderAuth) Apply(req *http.Request) {
	if a.Value == "" {
		return
	}
	header := a.Header
	if header == "" {
		header = "Authorization"
	}
	value := a.Value
	if a.Encode {
		value = base64.StdEncoding.EncodeToString([]byte(value))
	}
	if a.Scheme != "" {
		value = a.Scheme + " " + value
	}
	req.Header.Set(header, value)
}
