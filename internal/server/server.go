// Package server is the thin HTTP+SSE demo host: it exposes just enough of
// the runtime over the network to create a session, send it a message,
// stream its output, answer a pending permission ask, and interrupt or shut
// it down. Grounded on go-opencode's internal/server (server.go, routes.go):
// the same chi.Mux + cors.Handler middleware stack and Config/New/Start/
// Shutdown shape, trimmed from that package's full session/MCP/formatter/
// command/TUI route table down to the handful of routes this module's
// runtime actually needs to demonstrate end to end.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vibeworks/agentcore/internal/agentloop"
	"github.com/vibeworks/agentcore/internal/mcp"
	"github.com/vibeworks/agentcore/internal/metrics"
	"github.com/vibeworks/agentcore/internal/permission"
	"github.com/vibeworks/agentcore/internal/runtime"
	"github.com/vibeworks/agentcore/internal/session"
)

// Config is the server's own tunables, separate from the runtime it fronts.
type Config struct {
	Port         int
	Directory    string
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig mirrors go-opencode's server.DefaultConfig: CORS on, a
// 15s read timeout and no write timeout, so long-lived SSE connections are
// never cut off.
func DefaultConfig() Config {
	return Config{
		Port:         8765,
		EnableCORS:   true,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE connections must not be cut off by a write deadline
	}
}

// Server wires the runtime registry, one shared agentloop.Loop definition,
// session storage and the permission tiers new sessions start from, onto a
// chi.Mux.
type Server struct {
	config Config
	router *chi.Mux
	httpSrv *http.Server

	registry    *runtime.Registry
	store       *session.Store
	loop        *agentloop.Loop
	globalRules *permission.RuleSet
	mcpClient   *mcp.Client
	metrics     *metrics.Metrics
}

// New builds a Server. loop is the agent definition every created session
// spawns with — this demo host runs one agent configuration at a time,
// unlike go-opencode's per-session agent/model selection, per the "thin
// demo" framing that scopes this package down to exercising the runtime
// rather than reproducing every configuration surface.
func New(cfg Config, registry *runtime.Registry, store *session.Store, loop *agentloop.Loop, mcpClient *mcp.Client, m *metrics.Metrics) *Server {
	s := &Server{
		config:      cfg,
		registry:    registry,
		store:       store,
		loop:        loop,
		globalRules: registry.GlobalRules(),
		mcpClient:   mcpClient,
		metrics:     m,
	}
	s.router = chi.NewRouter()
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// Router exposes the underlying mux, mainly for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start blocks serving HTTP until Shutdown is called (or the listener
// fails), mirroring go-opencode's Server.Start.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         addrFor(s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server and every agent the registry is
// still running.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.registry.ShutdownAll(ctx); err != nil {
		return err
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func addrFor(port int) string {
	if port == 0 {
		port = DefaultConfig().Port
	}
	return ":" + strconv.Itoa(port)
}

// metricsHandler exposes the process's Prometheus registry, wired in only
// when the server was built with a non-nil Metrics.
func (s *Server) metricsHandler() http.Handler {
	if s.metrics == nil {
		return http.NotFoundHandler()
	}
	return promhttp.Handler()
}
