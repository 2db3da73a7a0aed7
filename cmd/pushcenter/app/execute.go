package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/pushcenter/cmd/pushcenter/cmd/relay"
	"github.com/agentstation/pushcenter/cmd/pushcenter/cmd/watch"
)

// Execute runs the pushcenter CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "pushcenter",
		Short:   "Long-poll push notification client",
		Version: a.version,
		Long: `pushcenter polls an events endpoint with a server-issued cursor and
delivers every event, in order, to local listeners.

Events can be printed (watch) or relayed to Server-Sent Events, WebSocket
and Redis pub/sub consumers (relay).`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.config.ConfigFile, "config", a.config.ConfigFile, "config file (default is $HOME/.pushcenter.yaml)")
	flags.BoolVarP(&a.config.Verbose, "verbose", "v", a.config.Verbose, "verbose output (shortcut for --log-level=debug)")
	flags.BoolVarP(&a.config.Quiet, "quiet", "q", a.config.Quiet, "minimal output (shortcut for --log-level=warn)")
	flags.StringVar(&a.config.LogLevel, "log-level", a.config.LogLevel, "log level: trace, debug, info, warn, error (overrides -v/-q)")
	flags.StringVar(&a.config.URL, "url", a.config.URL, "base URL of the events endpoint, e.g. https://vsd:8443/nuage/api/v6")
	flags.DurationVar(&a.config.RetryDelay, "retry-delay", a.config.RetryDelay, "pause after a failed poll")
	flags.DurationVar(&a.config.HTTPTimeout, "http-timeout", a.config.HTTPTimeout, "HTTP client timeout, 0 for none")
	flags.StringVar(&a.config.Token, "token", a.config.Token, "bearer token for the events endpoint")
	flags.StringVar(&a.config.Username, "username", a.config.Username, "basic auth username for the events endpoint")
	flags.StringVar(&a.config.Password, "password", a.config.Password, "basic auth password for the events endpoint")

	rootCmd.SetVersionTemplate("pushcenter {{.Version}}\n")

	a.registerCommands(rootCmd)

	return rootCmd
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("config") {
		if err := a.config.LoadFile(a.config.ConfigFile, cmd.Flags().Changed); err != nil {
			return err
		}
	}
	if err := a.config.Validate(); err != nil {
		return err
	}

	// Reinitialize logger with flag values
	logger := NewLogger(a.config)
	a.logger = &logger

	return nil
}

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(watch.NewCommand(a))
	rootCmd.AddCommand(relay.NewCommand(a))
	rootCmd.AddCommand(a.newVersionCommand())
}

// newVersionCommand creates the version command.
func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(),
				"pushcenter %s\n  commit:   %s\n  built:    %s\n  built by: %s\n",
				a.version, a.commit, a.date, a.builtBy)
			return err
		},
	}
}

// ExitOnError is a helper that prints an error and exits with status 1.
// This is meant to be used in main.go for top-level error handling.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
