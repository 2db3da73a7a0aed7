// Package relay re-publishes events received by a push center to
// downstream consumers over Server-Sent Events, WebSocket and Redis
// pub/sub.
//
// Usage:
//
//	srv, err := relay.New(relay.DefaultConfig(), pc, &logger)
//	if err != nil {
//	    return err
//	}
//	_ = pc.AddListener(srv.Broker())
//	srv.Start()
//	go srv.ListenAndServe()
//	defer srv.Shutdown(ctx)
package relay

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/agentstation/utc"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/agentstation/pushcenter"
	"github.com/agentstation/pushcenter/internal/relay/adapters"
	"github.com/agentstation/pushcenter/internal/relay/fanout"
	"github.com/agentstation/pushcenter/internal/relay/middleware"
	"github.com/agentstation/pushcenter/internal/relay/sse"
	ws "github.com/agentstation/pushcenter/internal/relay/websocket"
	"github.com/agentstation/pushcenter/pkg/constants"
	"github.com/agentstation/pushcenter/pkg/errors"
	"github.com/agentstation/pushcenter/pkg/logging"
)

// Server holds the relay HTTP server and its transports.
type Server struct {
	config         Config
	observer       pushcenter.Observer
	broker         *fanout.Broker
	sseBroadcaster *sse.Broadcaster
	wsHub          *ws.Hub
	redis          *adapters.RedisSink
	limiter        *middleware.RateLimiter
	httpServer     *http.Server
	logger         *zerolog.Logger
	startTime      utc.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// New creates a relay server reporting the status of observer.
func New(cfg Config, observer pushcenter.Observer, logger *zerolog.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logging.Component(logger, "relay")

	if cfg.Addr == "" {
		cfg.Addr = constants.DefaultRelayAddr
	}
	if cfg.RedisChannel == "" {
		cfg.RedisChannel = constants.DefaultRedisChannel
	}

	s := &Server{
		config:    cfg,
		observer:  observer,
		broker:    fanout.NewBroker(logger),
		logger:    logger,
		startTime: utc.Now(),
	}

	if cfg.EnableSSE {
		s.sseBroadcaster = sse.NewBroadcaster(logger)
		s.broker.Subscribe(adapters.NewSSESink(s.sseBroadcaster))
	}

	if cfg.EnableWebSocket {
		s.wsHub = ws.NewHub(logger, cfg.CORSOrigins...)
		s.broker.Subscribe(adapters.NewWebSocketSink(s.wsHub))
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, errors.NewConfigError("relay", "invalid redis url", err)
		}
		s.redis = adapters.NewRedisSink(redis.NewClient(opts), cfg.RedisChannel)
		s.broker.Subscribe(s.redis)
		logger.Info().
			Str("addr", opts.Addr).
			Str("channel", cfg.RedisChannel).
			Msg("Redis relay enabled")
	}

	if cfg.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit, logger)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: constants.ReadHeaderTimeout,
	}

	return s, nil
}

// Broker returns the listener to register on the push center.
func (s *Server) Broker() *fanout.Broker {
	return s.broker
}

// Start starts the background services.
// Calling Start on a started server does nothing.
func (s *Server) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.goRun(func() { s.broker.Run(ctx) })
	if s.wsHub != nil {
		s.goRun(func() { s.wsHub.Run(ctx) })
	}
	if s.sseBroadcaster != nil {
		s.goRun(func() { s.sseBroadcaster.Run(ctx) })
	}
	if s.limiter != nil {
		s.goRun(func() { s.limiter.Run(ctx) })
	}

	// Streaming handlers refuse clients until their loops run.
	if s.wsHub != nil {
		<-s.wsHub.Started()
	}
	if s.sseBroadcaster != nil {
		<-s.sseBroadcaster.Started()
	}

	s.logger.Debug().Msg("Relay background services started")
}

func (s *Server) goRun(fn func()) {
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		fn()
	}()
}

// ListenAndServe listens on the configured address. It returns nil after
// Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return errors.WrapResource("listen", "relay", s.config.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. It returns nil after Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Relay listening")
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return errors.WrapResource("serve", "relay", s.config.Addr, err)
	}
	return nil
}

// Shutdown stops the background services, which ends every open stream,
// then gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down relay")

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("Relay background services shutdown timed out")
	}

	if cancel == nil && s.redis != nil {
		// Never started, so the broker did not close its sinks.
		_ = s.redis.Close()
	}

	return s.httpServer.Shutdown(ctx)
}

// StartTime returns the server start time for uptime calculations.
func (s *Server) StartTime() utc.Time {
	return s.startTime
}
