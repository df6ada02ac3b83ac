package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gospeldiary/internal/config"
	"gospeldiary/internal/logger"
	"gospeldiary/internal/pipeline"
)

// Runner is the part of the pipeline the server drives
type Runner interface {
	Compose(ctx context.Context, date time.Time) (*pipeline.Result, error)
	Run(ctx context.Context, date time.Time) (*pipeline.Result, error)
	CanDeliver() bool
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	runner     Runner
	config     config.Server
	location   *time.Location
	log        *slog.Logger
}

// New creates a new HTTP server instance
func New(runner Runner, cfg config.Server, location *time.Location, log *slog.Logger) *Server {
	if log == nil {
		log = logger.Get()
	}
	if location == nil {
		location = time.UTC
	}

	s := &Server{
		router:   chi.NewRouter(),
		runner:   runner,
		config:   cfg,
		location: location,
		log:      log.With("component", "server"),
	}

	// Setup middleware
	s.setupMiddleware()

	// Setup routes
	s.setupRoutes()

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Get("/preview", s.handlePreview)
	s.router.Get("/api/preview", s.handlePreviewJSON)

	s.router.With(s.requireAPIKey).Post("/run", s.handleRun)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"read_timeout", s.config.ReadTimeout,
		"write_timeout", s.config.WriteTimeout,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
