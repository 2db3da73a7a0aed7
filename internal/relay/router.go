package relay

import (
	"net/http"
	"time"

	"github.com/agentstation/utc"

	"github.com/agentstation/pushcenter"
	"github.com/agentstation/pushcenter/internal/relay/middleware"
	"github.com/agentstation/pushcenter/internal/relay/response"
)

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return s.applyMiddleware(mux)
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", getOnly(s.handleHealth))
	mux.HandleFunc("/status", getOnly(s.handleStatus))

	if s.sseBroadcaster != nil {
		mux.Handle("/events/stream", getOnly(s.sseBroadcaster.ServeHTTP))
	}
	if s.wsHub != nil {
		mux.Handle("/events/ws", getOnly(s.wsHub.ServeHTTP))
	}
}

// applyMiddleware wraps handler with middleware chain.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	cfg := s.config

	if cfg.Token != "" {
		authConfig := middleware.DefaultAuthConfig()
		authConfig.Enabled = true
		authConfig.Token = cfg.Token
		handler = middleware.Auth(authConfig, s.logger)(handler)
	}

	if len(cfg.CORSOrigins) > 0 {
		corsConfig := middleware.DefaultCORSConfig()
		corsConfig.AllowedOrigins = cfg.CORSOrigins
		handler = middleware.CORS(corsConfig)(handler)
	}

	if s.limiter != nil {
		handler = middleware.RateLimit(s.limiter)(handler)
	}

	return middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.Logger(s.logger),
	)(handler)
}

func getOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			response.MethodNotAllowed(w, r.Method)
			return
		}
		next(w, r)
	}
}

// Health is the /healthz payload.
type Health struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, Health{
		Status: "ok",
		Uptime: time.Since(s.startTime.Time).Round(time.Second).String(),
	})
}

// Status is the /status payload.
type Status struct {
	PushCenter *pushcenter.Status `json:"pushCenter,omitempty"`
	Relay      TransportStatus    `json:"relay"`
}

// TransportStatus describes the relay transports.
type TransportStatus struct {
	StartedAt        utc.Time `json:"startedAt"`
	Sinks            int      `json:"sinks"`
	Pending          int      `json:"pending"`
	SSEClients       int      `json:"sseClients"`
	WebSocketClients int      `json:"websocketClients"`
	Redis            bool     `json:"redis"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := Status{
		Relay: TransportStatus{
			StartedAt: s.startTime,
			Sinks:     s.broker.SinkCount(),
			Pending:   s.broker.Pending(),
			Redis:     s.redis != nil,
		},
	}
	if s.observer != nil {
		st := s.observer.Status()
		status.PushCenter = &st
	}
	if s.sseBroadcaster != nil {
		status.Relay.SSEClients = s.sseBroadcaster.ClientCount()
	}
	if s.wsHub != nil {
		status.Relay.WebSocketClients = s.wsHub.ClientCount()
	}
	response.OK(w, status)
}
