// Package server provides the HTTP server and routing for Breakwater.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/opencoastal/breakwater/internal/config"
	"github.com/opencoastal/breakwater/internal/modules/montecarlo"
	"github.com/opencoastal/breakwater/internal/modules/universe"
	"github.com/opencoastal/breakwater/internal/scheduler"
)

// Config holds server configuration.
type Config struct {
	Log          zerolog.Logger
	Config       *config.Config
	Port         int
	DevMode      bool
	Episodes     *EpisodeManager
	Runner       *montecarlo.Runner
	SweepJob     *scheduler.SweepJob
	UniverseRepo *universe.Repository
	Components   int // Action-vector arity
}

// Server represents the HTTP server.
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	episodes       *EpisodeManager
	runner         *montecarlo.Runner
	sweepJob       *scheduler.SweepJob
	universeRepo   *universe.Repository
	components     int
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		episodes:       cfg.Episodes,
		runner:         cfg.Runner,
		sweepJob:       cfg.SweepJob,
		universeRepo:   cfg.UniverseRepo,
		components:     cfg.Components,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.Config.DataDir),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/episodes", func(r chi.Router) {
			r.Post("/", s.handleCreateEpisode)
			r.Get("/", s.handleListEpisodes)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetEpisode)
				r.Delete("/", s.handleDeleteEpisode)
				r.Post("/step", s.handleStepEpisode)
				r.Get("/stream", s.handleStreamEpisode)
			})
		})

		r.Post("/montecarlo", s.handleMonteCarlo)
		r.Get("/sweeps/latest", s.handleLatestSweep)

		r.Route("/boroughs", func(r chi.Router) {
			r.Get("/", s.handleListBoroughs)
			r.Get("/{name}", s.handleGetBorough)
			r.Put("/{name}", s.handleSaveBorough)
		})

		r.Route("/system", func(r chi.Router) {
			r.Get("/", s.systemHandlers.HandleSystemStatus)
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/disk", s.systemHandlers.HandleDiskUsage)
		})
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "breakwater",
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
