// Package server ingests captured UI events over WebSocket and feeds them
// into per-application dispatchers. A client opens the replay route, sends a
// hello frame naming its application (optionally carrying the serialized
// replay state bundle), and streams event frames; the server initializes the
// application, routes events through its contract, and pushes hydrated
// fragment ids back as fragments drain.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/replay/pkg/contract"
	"github.com/vango-dev/replay/pkg/dispatch"
)

// ErrNoAppFactory is returned when the server starts without an application
// factory.
var ErrNoAppFactory = errors.New("server: no application factory configured")

// AppFactory builds the application instance for one connection: the SSR
// document, its renderer, and coordinator options. Called once per session
// after the hello frame names the application.
type AppFactory func(ctx context.Context, appID string) (*dispatch.App, error)

// Server is the HTTP/WebSocket ingestion server.
type Server struct {
	config     *ServerConfig
	store      *contract.Store
	dispatcher *dispatch.Dispatcher
	factory    AppFactory
	upgrader   websocket.Upgrader
	logger     *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
}

// New creates a Server with the given configuration. A nil config uses
// DefaultServerConfig; unset fields are filled from the defaults.
func New(config *ServerConfig) *Server {
	if config == nil {
		config = DefaultServerConfig()
	} else {
		config = config.Clone()
		defaults := DefaultServerConfig()
		if config.Address == "" {
			config.Address = defaults.Address
		}
		if config.Path == "" {
			config.Path = defaults.Path
		}
		if config.ReadBufferSize == 0 {
			config.ReadBufferSize = defaults.ReadBufferSize
		}
		if config.WriteBufferSize == 0 {
			config.WriteBufferSize = defaults.WriteBufferSize
		}
		if config.CheckOrigin == nil {
			config.CheckOrigin = defaults.CheckOrigin
		}
		if config.ReadTimeout == 0 {
			config.ReadTimeout = defaults.ReadTimeout
		}
		if config.WriteTimeout == 0 {
			config.WriteTimeout = defaults.WriteTimeout
		}
		if config.HandshakeTimeout == 0 {
			config.HandshakeTimeout = defaults.HandshakeTimeout
		}
		if config.ShutdownTimeout == 0 {
			config.ShutdownTimeout = defaults.ShutdownTimeout
		}
		if config.MaxMessageSize == 0 {
			config.MaxMessageSize = defaults.MaxMessageSize
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	store := contract.NewStore()
	return &Server{
		config:     config,
		store:      store,
		dispatcher: dispatch.NewDispatcher(store, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		logger: logger,
	}
}

// SetAppFactory sets the application factory. Connections are rejected
// until one is configured.
func (s *Server) SetAppFactory(fn AppFactory) {
	s.factory = fn
}

// Store returns the bundle store shared with the dispatcher. Bundles put
// here before a session initializes (e.g. extracted from SSR output) are
// consumed by Dispatcher.Init.
func (s *Server) Store() *contract.Store { return s.store }

// Dispatcher returns the application dispatcher.
func (s *Server) Dispatcher() *dispatch.Dispatcher { return s.dispatcher }

// Routes returns the server's HTTP handler: the WebSocket upgrade on the
// configured path, a liveness probe on /healthz, and Prometheus metrics on
// /metrics.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get(s.config.Path, s.handleReplay)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metricsHandler())
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) metricsHandler() http.Handler {
	if s.config.Registry != nil {
		return promhttp.HandlerFor(s.config.Registry, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// handleReplay upgrades the connection and runs the session until the
// client disconnects.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	if s.factory == nil {
		s.logger.Error("connection rejected", "error", ErrNoAppFactory)
		http.Error(w, "no application factory", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	// The request context stays alive while the session runs inside this
	// handler; it is cancelled when the client disconnects.
	sess := newSession(s, conn)
	sess.run(r.Context())
}

// ListenAndServe starts the HTTP server on the configured address. It
// blocks until Shutdown or a listener error; a graceful shutdown returns
// nil.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:              s.config.Address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("listening", "addr", s.config.Address, "path", s.config.Path)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Close shuts the server down within the configured ShutdownTimeout.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}
