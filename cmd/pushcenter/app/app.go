// Package app provides the application context and dependency management
// for the pushcenter CLI. It centralizes configuration, logging and the
// push centers commands create, so they can be stopped on shutdown.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/pushcenter"
	"github.com/agentstation/pushcenter/internal/cmd/application"
	"github.com/agentstation/pushcenter/pkg/errors"
)

// Ensure App implements application.Application at compile time.
var _ application.Application = (*App)(nil)

// App represents the pushcenter application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	mu      sync.Mutex
	centers []pushcenter.PushCenter
}

// New creates a new App instance with the given version information.
// The app is initialized from LoadConfig and can be customized using
// functional options.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// PushCenter creates a push center from the configuration. opts are
// applied last and win over configured values. Every push center created
// here is stopped by Shutdown.
func (a *App) PushCenter(opts ...pushcenter.Option) (pushcenter.PushCenter, error) {
	pc, err := pushcenter.New(append(a.pushCenterOptions(), opts...)...)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.centers = append(a.centers, pc)
	a.mu.Unlock()
	return pc, nil
}

// Shutdown performs graceful shutdown of the application. It stops every
// push center that is still polling.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	centers := a.centers
	a.centers = nil
	a.mu.Unlock()

	for _, pc := range centers {
		if !pc.IsRunning() {
			continue
		}
		if err := pc.StopContext(ctx); err != nil {
			a.logger.Error().Err(err).Str("url", pc.URL()).Msg("Failed to stop push center during shutdown")
			return err
		}
	}
	return nil
}

// pushCenterOptions constructs push center options from the configuration.
func (a *App) pushCenterOptions() []pushcenter.Option {
	opts := []pushcenter.Option{pushcenter.WithLogger(a.logger)}

	if a.config.URL != "" {
		opts = append(opts, pushcenter.WithURL(a.config.URL))
	}
	if a.config.RetryDelay > 0 {
		opts = append(opts, pushcenter.WithRetryDelay(a.config.RetryDelay))
	}
	if a.config.HTTPTimeout > 0 {
		opts = append(opts, pushcenter.WithHTTPTimeout(a.config.HTTPTimeout))
	}

	creds := a.config.Credentials()
	switch creds.Kind() {
	case "bearer":
		opts = append(opts, pushcenter.WithBearerToken(creds.Token))
	case "basic":
		opts = append(opts, pushcenter.WithBasicAuth(creds.Username, creds.Password))
	}

	return opts
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}
