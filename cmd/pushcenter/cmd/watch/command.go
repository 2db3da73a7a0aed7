// Package watch provides the watch command, which prints every event a
// push center receives.
package watch

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/pushcenter"
	"github.com/agentstation/pushcenter/internal/cmd/application"
	"github.com/agentstation/pushcenter/internal/cmd/output"
	"github.com/agentstation/pushcenter/internal/listeners"
	"github.com/agentstation/pushcenter/pkg/constants"
	"github.com/agentstation/pushcenter/pkg/errors"
	"github.com/agentstation/pushcenter/pkg/events"
)

// Flags holds the watch command flags.
type Flags struct {
	Format      string
	Output      string
	MaxEvents   int
	Summary     bool
	Types       []string
	EntityTypes []string
}

// NewCommand creates the watch command using app context.
func NewCommand(app application.Application) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the events endpoint and print every event",
		Long: `Watch starts polling the configured events endpoint and prints each
event as it arrives, until interrupted.

Output formats:
  json  one compact JSON document per line (default when piped)
  yaml  one YAML document per event
  text  one line summary per event (default on a terminal)`,
		Example: `  # Print events from a VSD
  pushcenter watch --url https://vsd:8443/nuage/api/v6 --username csproot --password csproot

  # Append events to a file as JSON lines
  pushcenter watch --format json --output events.jsonl

  # Stop after ten events and print counters
  pushcenter watch --max-events 10 --summary

  # Only deletions of vports and vport mirrors
  pushcenter watch --type DELETE --entity-type 'vport*'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, app, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Format, "format", "f", "", "output format: json, yaml, text (default auto)")
	cmd.Flags().StringVarP(&flags.Output, "output", "o", "", "append events to this file instead of stdout")
	cmd.Flags().IntVar(&flags.MaxEvents, "max-events", 0, "stop after this many events, 0 for no limit")
	cmd.Flags().BoolVar(&flags.Summary, "summary", false, "print a status table to stderr on exit")
	cmd.Flags().StringSliceVar(&flags.Types, "type", nil, "only events whose type matches (glob or regex, comma-separated)")
	cmd.Flags().StringSliceVar(&flags.EntityTypes, "entity-type", nil, "only events whose entity type matches (glob or regex, comma-separated)")

	return cmd
}

// run polls until the command context is cancelled or the event limit is
// reached.
func run(cmd *cobra.Command, app application.Application, flags *Flags) error {
	explicit := flags.Format
	if explicit == "" {
		explicit = app.OutputFormat()
	}
	format := output.DetectFormat(explicit)
	if _, err := output.ParseFormat(string(format)); err != nil {
		return err
	}
	if flags.MaxEvents < 0 {
		return errors.NewValidationError("max-events", flags.MaxEvents, "must not be negative")
	}

	w := cmd.OutOrStdout()
	if flags.Output != "" {
		f, err := os.OpenFile(flags.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, constants.FilePermissions)
		if err != nil {
			return errors.WrapResource("open", "output file", flags.Output, err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	printer := output.NewEventPrinter(w, format)
	var listener events.Listener = printer
	if flags.MaxEvents > 0 {
		listener = &limited{next: printer, limit: flags.MaxEvents, cancel: cancel}
	}
	listener, err := listeners.Wrap(listener, flags.Types, flags.EntityTypes)
	if err != nil {
		return err
	}

	pc, err := app.PushCenter(pushcenter.WithListeners(listener))
	if err != nil {
		return err
	}

	logger := app.Logger()
	if err := pc.Start(); err != nil {
		return err
	}
	logger.Info().Str("url", pc.URL()).Str("format", string(format)).Msg("Watching events")

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer stopCancel()
	if err := pc.StopContext(stopCtx); err != nil {
		return errors.WrapResource("stop", "push center", pc.URL(), err)
	}

	logger.Info().Int("events", printer.Count()).Msg("Stopped watching")

	if flags.Summary {
		return output.StatusTable(cmd.ErrOrStderr(), pc.Status())
	}
	return nil
}

// limited forwards the first limit events and then cancels the context run
// waits on. Stop must not be called from a listener.
type limited struct {
	next   events.Listener
	limit  int
	seen   int
	cancel context.CancelFunc
}

func (l *limited) OnEvent(e events.Event) error {
	if l.seen >= l.limit {
		return nil
	}
	l.seen++
	if l.seen == l.limit {
		defer l.cancel()
	}
	return l.next.OnEvent(e)
}
