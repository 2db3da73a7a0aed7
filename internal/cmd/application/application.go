// Package application defines the interface commands use to reach the
// CLI's shared dependencies without importing the app package.
package application

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/pushcenter"
)

// Application is what a command needs from the CLI.
type Application interface {
	// PushCenter creates a push center from the CLI configuration.
	// opts are applied after the configured ones.
	PushCenter(opts ...pushcenter.Option) (pushcenter.PushCenter, error)

	// Logger returns the configured logger.
	Logger() *zerolog.Logger

	// OutputFormat returns the --format flag value, empty for auto.
	OutputFormat() string

	// Version information
	Version() string
	Commit() string
	Date() string
	BuiltBy() string
}
