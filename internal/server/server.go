// Package server provides the HTTP API surface of the calculation engine.
// Handlers stay thin: they validate the request, hand the work to a module
// service or the job runner, and translate results to JSON.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/equitylens/engine/internal/config"
	"github.com/equitylens/engine/internal/jobs"
	jobhandlers "github.com/equitylens/engine/internal/jobs/handlers"
	"github.com/equitylens/engine/internal/modules/factors"
	factorhandlers "github.com/equitylens/engine/internal/modules/factors/handlers"
	"github.com/equitylens/engine/internal/modules/optimization"
	optimizationhandlers "github.com/equitylens/engine/internal/modules/optimization/handlers"
	"github.com/equitylens/engine/internal/modules/performance"
	performancehandlers "github.com/equitylens/engine/internal/modules/performance/handlers"
	"github.com/equitylens/engine/internal/modules/portfolio"
	portfoliohandlers "github.com/equitylens/engine/internal/modules/portfolio/handlers"
	"github.com/equitylens/engine/internal/modules/risk"
	riskhandlers "github.com/equitylens/engine/internal/modules/risk/handlers"
)

// Services bundles everything the HTTP layer depends on.
type Services struct {
	Portfolio    *portfolio.Repository
	Performance  *performance.Service
	Risk         *risk.Service
	Factors      *factors.Service
	Optimization *optimization.Service
	JobStore     *jobs.Store
	JobRunner    *jobs.Runner
}

// Server is the HTTP server for the calculation engine API.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
}

// New creates a server with all routes and middleware wired.
func New(cfg *config.Config, svc Services, log zerolog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    log.With().Str("component", "server").Logger(),
	}

	s.setupMiddleware(cfg)
	s.setupRoutes(svc, log)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(cfg *config.Config) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !cfg.DevMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes(svc Services, log zerolog.Logger) {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		portfoliohandlers.NewHandler(svc.Portfolio, log).RegisterRoutes(r)
		performancehandlers.NewHandler(svc.Performance, svc.JobRunner, log).RegisterRoutes(r)
		riskhandlers.NewHandler(svc.Risk, svc.JobRunner, log).RegisterRoutes(r)
		factorhandlers.NewHandler(svc.Factors, svc.JobRunner, log).RegisterRoutes(r)
		optimizationhandlers.NewHandler(svc.Optimization, svc.JobRunner, log).RegisterRoutes(r)
		jobhandlers.NewHandler(svc.JobStore, log).RegisterRoutes(r)

		r.Get("/system/status", s.handleSystemStatus(svc.JobStore))
	})
}

// Start begins listening for HTTP requests. It blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the underlying router, used by tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
