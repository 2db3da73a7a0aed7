package application

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/pushcenter"
)

// Mock provides a mock implementation of Application for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default/zero value.
//
// Example Usage:
//
//	mock := &application.Mock{
//	    PushCenterFunc: func(opts ...pushcenter.Option) (pushcenter.PushCenter, error) {
//	        return pushcenter.New(append([]pushcenter.Option{pushcenter.WithURL(srv.URL)}, opts...)...)
//	    },
//	}
//	cmd := watch.NewCommand(mock)
type Mock struct {
	PushCenterFunc   func(opts ...pushcenter.Option) (pushcenter.PushCenter, error)
	LoggerFunc       func() *zerolog.Logger
	OutputFormatFunc func() string
	VersionFunc      func() string
	CommitFunc       func() string
	DateFunc         func() string
	BuiltByFunc      func() string
}

// PushCenter returns a push center using the mock function, or one built
// from opts alone.
func (m *Mock) PushCenter(opts ...pushcenter.Option) (pushcenter.PushCenter, error) {
	if m.PushCenterFunc != nil {
		return m.PushCenterFunc(opts...)
	}
	return pushcenter.New(append([]pushcenter.Option{pushcenter.WithLogger(m.Logger())}, opts...)...)
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns output format using the mock function or "".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return ""
}

// Version returns version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Commit returns commit using the mock function or "unknown".
func (m *Mock) Commit() string {
	if m.CommitFunc != nil {
		return m.CommitFunc()
	}
	return "unknown"
}

// Date returns date using the mock function or "unknown".
func (m *Mock) Date() string {
	if m.DateFunc != nil {
		return m.DateFunc()
	}
	return "unknown"
}

// BuiltBy returns builtBy using the mock function or "test".
func (m *Mock) BuiltBy() string {
	if m.BuiltByFunc != nil {
		return m.BuiltByFunc()
	}
	return "test"
}

// Ensure Mock implements Application at compile time.
var _ Application = (*Mock)(nil)
