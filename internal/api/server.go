package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fleetsim/fleetsim-core/internal/infrastructure/config"
	"github.com/fleetsim/fleetsim-core/internal/publisher"
	"github.com/fleetsim/fleetsim-core/internal/refcache"
)

// shutdownTimeout bounds graceful shutdown on Close.
const shutdownTimeout = 10 * time.Second

// Snapshotter exposes the current reference snapshot.
type Snapshotter interface {
	Snapshot() *refcache.Snapshot
}

// PipelineStats exposes delivery pipeline counters.
type PipelineStats interface {
	Stats() publisher.Stats
}

// BrokerStatus reports broker connectivity.
type BrokerStatus interface {
	IsConnected() bool
}

// Logger defines the logging interface used by the Server.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps holds the server's dependencies.
type Deps struct {
	Config   *config.Config
	Cache    Snapshotter
	Pipeline PipelineStats
	Broker   BrokerStatus
	Version  string
}

// Server is the ops HTTP API.
//
// It serves liveness and status endpoints only; it is not an external
// surface and carries no authentication.
type Server struct {
	deps    Deps
	logger  Logger
	srv     *http.Server
	started time.Time
}

// New creates a Server.
//
// Parameters:
//   - deps: Server dependencies; Config, Cache, and Pipeline are required
//
// Returns:
//   - *Server: The server, started via Start
//   - error: Validation error when a required dependency is nil
func New(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, errors.New("api: config is required")
	}
	if deps.Cache == nil {
		return nil, errors.New("api: cache is required")
	}
	if deps.Pipeline == nil {
		return nil, errors.New("api: pipeline is required")
	}

	s := &Server{
		deps:    deps,
		logger:  noopLogger{},
		started: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
	})

	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", deps.Config.API.Host, deps.Config.API.Port),
		Handler:      r,
		ReadTimeout:  deps.Config.GetReadTimeout(),
		WriteTimeout: deps.Config.GetWriteTimeout(),
		IdleTimeout:  deps.Config.GetIdleTimeout(),
	}

	return s, nil
}

// SetLogger sets the logger for the server.
func (s *Server) SetLogger(logger Logger) {
	s.logger = logger
}

// Start begins serving in a background goroutine. Listen failures other
// than graceful shutdown are logged.
func (s *Server) Start() {
	s.logger.Info("ops API listening", "addr", s.srv.Addr)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ops API serve failed", "error", err)
		}
	}()
}

// Close shuts the server down gracefully, waiting up to shutdownTimeout
// for in-flight requests.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
