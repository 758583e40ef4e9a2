package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/iddaa-lens/jobrunner/internal/config"
	"github.com/iddaa-lens/jobrunner/pkg/handlers/health"
	jobshandler "github.com/iddaa-lens/jobrunner/pkg/handlers/jobs"
	"github.com/iddaa-lens/jobrunner/pkg/jobs"
	"github.com/iddaa-lens/jobrunner/pkg/logger"
	"github.com/iddaa-lens/jobrunner/pkg/middleware"
)

// Server represents the read-only jobs API
type Server struct {
	router   *http.ServeMux
	http     *http.Server
	addr     string
	logger   *logger.Logger
	handlers struct {
		health *health.Handler
		jobs   *jobshandler.Handler
	}
}

// New creates a server that evaluates jobs from store on every request
func New(cfg *config.Config, store jobs.JobStore, log *logger.Logger) *Server {
	// The API only evaluates; it never invokes
	cycle := jobs.NewCycle(store, nil, log, nil)

	server := &Server{
		router: http.NewServeMux(),
		addr:   net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		logger: log,
	}

	server.handlers.health = health.NewHandler(log, func(ctx context.Context) error {
		_, err := store.FetchAll(ctx)
		return err
	})
	server.handlers.jobs = jobshandler.NewHandler(cycle, log)

	server.setupRoutes()

	server.http = &http.Server{
		Addr:              server.addr,
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", middleware.CORS(s.handlers.health.HealthCheck))

	// Simple root endpoint
	s.router.HandleFunc("/", middleware.CORS(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if _, err := fmt.Fprintf(w, "Job Runner API - OK"); err != nil {
			http.Error(w, "Failed to write response", http.StatusInternalServerError)
		}
	}))

	// Jobs endpoints
	s.router.HandleFunc("/api/jobs", middleware.CORS(s.handlers.jobs.List))
	s.router.HandleFunc("/api/jobs/eligible", middleware.CORS(s.handlers.jobs.Eligible))
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info().
		Str("action", "server_start").
		Str("addr", s.addr).
		Msg("Starting jobs API server")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed to start on %s: %w", s.addr, err)
	}

	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().
		Str("action", "server_stop").
		Msg("Shutting down jobs API server")
	return s.http.Shutdown(ctx)
}
