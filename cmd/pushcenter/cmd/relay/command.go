// Package relay provides the relay command, which polls the events
// endpoint and re-publishes every event over SSE, WebSocket and Redis.
package relay

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/pushcenter/internal/cmd/application"
	"github.com/agentstation/pushcenter/internal/config"
	"github.com/agentstation/pushcenter/internal/listeners"
	"github.com/agentstation/pushcenter/internal/relay"
	"github.com/agentstation/pushcenter/pkg/constants"
	"github.com/agentstation/pushcenter/pkg/errors"
)

// Flags holds the relay command flags.
type Flags struct {
	Addr         string
	RedisURL     string
	RedisChannel string
	NoSSE        bool
	NoWebSocket  bool
	Token        string
	CORSOrigins  []string
	RateLimit    int
	Types        []string
	EntityTypes  []string
}

// NewCommand creates the relay command using app context.
func NewCommand(app application.Application) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Poll the events endpoint and relay events to SSE, WebSocket and Redis",
		Long: `Relay polls the configured events endpoint and re-publishes every
event to downstream consumers:

  GET /events/stream   Server-Sent Events
  GET /events/ws       WebSocket
  GET /status          push center and relay counters
  GET /healthz         liveness

With --redis-url, events are also published to the Redis channel given by
--redis-channel and to "<channel>.<entityType>".`,
		Example: `  # Relay on the default address
  pushcenter relay --url https://vsd:8443/nuage/api/v6 --token $VSD_TOKEN

  # Publish to Redis only
  pushcenter relay --no-sse --no-websocket --redis-url redis://localhost:6379/0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), app, flags)
		},
	}

	cmd.Flags().StringVar(&flags.Addr, "addr", constants.DefaultRelayAddr, "listen address")
	cmd.Flags().StringVar(&flags.RedisURL, "redis-url", "", "Redis URL to publish events to, e.g. redis://localhost:6379/0")
	cmd.Flags().StringVar(&flags.RedisChannel, "redis-channel", constants.DefaultRedisChannel, "Redis pub/sub channel")
	cmd.Flags().BoolVar(&flags.NoSSE, "no-sse", false, "disable the Server-Sent Events endpoint")
	cmd.Flags().BoolVar(&flags.NoWebSocket, "no-websocket", false, "disable the WebSocket endpoint")
	cmd.Flags().StringVar(&flags.Token, "relay-token", "", "token required from relay clients")
	cmd.Flags().StringSliceVar(&flags.CORSOrigins, "cors-origins", nil, "allowed CORS origins (comma-separated)")
	cmd.Flags().IntVar(&flags.RateLimit, "rate-limit", 0, "requests per minute per client IP, 0 for no limit")
	cmd.Flags().StringSliceVar(&flags.Types, "type", nil, "only relay events whose type matches (glob or regex, comma-separated)")
	cmd.Flags().StringSliceVar(&flags.EntityTypes, "entity-type", nil, "only relay events whose entity type matches (glob or regex, comma-separated)")

	return cmd
}

// Config builds the relay configuration from flags, falling back to the
// PUSHCENTER_* environment for values left unset.
func (f *Flags) Config() relay.Config {
	cfg := relay.Config{
		Addr:            f.Addr,
		EnableSSE:       !f.NoSSE,
		EnableWebSocket: !f.NoWebSocket,
		RedisURL:        f.RedisURL,
		RedisChannel:    f.RedisChannel,
		Token:           f.Token,
		CORSOrigins:     f.CORSOrigins,
		RateLimit:       f.RateLimit,
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = config.GetString("redis-url")
	}
	if cfg.Token == "" {
		cfg.Token = config.GetString("relay-token")
	}
	return cfg
}

// run relays until ctx is cancelled or the server fails.
func run(ctx context.Context, app application.Application, flags *Flags) error {
	cfg := flags.Config()
	if !cfg.EnableSSE && !cfg.EnableWebSocket && cfg.RedisURL == "" {
		return errors.NewValidationError("relay", "", "every transport is disabled")
	}
	if cfg.RateLimit < 0 {
		return errors.NewValidationError("rate-limit", cfg.RateLimit, "must not be negative")
	}

	logger := app.Logger()

	pc, err := app.PushCenter()
	if err != nil {
		return err
	}

	srv, err := relay.New(cfg, pc, logger)
	if err != nil {
		return err
	}
	listener, err := listeners.Wrap(srv.Broker(), flags.Types, flags.EntityTypes)
	if err != nil {
		shutdown(srv, logger)
		return err
	}
	if err := pc.AddListener(listener); err != nil {
		shutdown(srv, logger)
		return err
	}

	srv.Start()
	served := make(chan error, 1)
	go func() {
		served <- srv.ListenAndServe()
	}()

	if err := pc.Start(); err != nil {
		shutdown(srv, logger)
		return err
	}

	logger.Info().
		Str("url", pc.URL()).
		Str("addr", cfg.Addr).
		Bool("sse", cfg.EnableSSE).
		Bool("websocket", cfg.EnableWebSocket).
		Bool("redis", cfg.RedisURL != "").
		Msg("Relay started")

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-served:
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if err := pc.StopContext(stopCtx); err != nil {
		logger.Warn().Err(err).Msg("Push center did not stop in time")
	}
	shutdown(srv, logger)

	return serveErr
}

func shutdown(srv *relay.Server, logger *zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("Relay server did not shut down cleanly")
	}
}
