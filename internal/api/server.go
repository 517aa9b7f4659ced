// Package api provides the HTTP API server for the buildfix platform.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/bharatbuild/buildfix/internal/api/handlers"
	"github.com/bharatbuild/buildfix/internal/api/middleware"
	"github.com/bharatbuild/buildfix/internal/auth"
	"github.com/bharatbuild/buildfix/internal/events"
	"github.com/bharatbuild/buildfix/internal/fixer"
	"github.com/bharatbuild/buildfix/internal/logbus"
	"github.com/bharatbuild/buildfix/internal/orchestrator"
	"github.com/bharatbuild/buildfix/internal/rebuild"
	"github.com/bharatbuild/buildfix/internal/secrets"
	"github.com/bharatbuild/buildfix/internal/store"
	"github.com/bharatbuild/buildfix/internal/trigger"
	"github.com/bharatbuild/buildfix/internal/watcher"
	"github.com/bharatbuild/buildfix/pkg/config"
)

// Server is the buildfix HTTP API server.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	router chi.Router
	http   *http.Server

	buses     *logbus.Manager
	rebuilder *rebuild.Rebuilder
	broker    *events.Broker
	workflows *orchestrator.Registry
	fixers    *fixer.Registry
	store     store.Store
	trigger   *trigger.Trigger
	auth      *auth.Service
	envStore  *secrets.EnvStore
	watchers  *watcher.Manager
}

// Deps bundles the services the server exposes. Store and Trigger may
// be nil when their features are disabled.
type Deps struct {
	Buses     *logbus.Manager
	Rebuilder *rebuild.Rebuilder
	Broker    *events.Broker
	Workflows *orchestrator.Registry
	Fixers    *fixer.Registry
	Store     store.Store
	Trigger   *trigger.Trigger
	Auth      *auth.Service
	EnvStore  *secrets.EnvStore
	Watchers  *watcher.Manager
}

// NewServer creates the API server and wires its routes.
func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		buses:     deps.Buses,
		rebuilder: deps.Rebuilder,
		broker:    deps.Broker,
		workflows: deps.Workflows,
		fixers:    deps.Fixers,
		store:     deps.Store,
		trigger:   deps.Trigger,
		auth:      deps.Auth,
		envStore:  deps.EnvStore,
		watchers:  deps.Watchers,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)

	logsHandler := handlers.NewLogsHandler(s.buses, s.rebuilder, s.trigger, s.logger)
	eventsHandler := handlers.NewEventsHandler(s.broker, s.logger)
	workflowsHandler := handlers.NewWorkflowsHandler(s.workflows, s.store, s.logger)
	fixHandler := handlers.NewFixHandler(s.fixers, s.logger)
	projectsHandler := handlers.NewProjectsHandler(s.cfg.ProjectsRoot, s.envStore, s.watchers, s.logger)

	authMW := middleware.NewAuthMiddleware(s.auth, s.logger)

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMW.Authenticate)

		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Post("/logs", logsHandler.Ingest)
			r.Post("/logs/batch", logsHandler.IngestBatch)
			r.Get("/logs/ws", logsHandler.IngestWS)
			r.Get("/logs", logsHandler.List)
			r.Delete("/logs", logsHandler.Clear)
			r.Get("/errors", logsHandler.Errors)
			r.Get("/payload", logsHandler.Payload)
			r.Post("/payload/bolt", logsHandler.BoltPayload)

			r.Get("/events", eventsHandler.Stream)

			r.Post("/workflows", workflowsHandler.Start)
			r.Get("/workflows/current", workflowsHandler.Current)
			r.Delete("/workflows/current", workflowsHandler.Cancel)
			r.Get("/runs", workflowsHandler.ListRuns)

			r.Post("/fix", fixHandler.Analyze)
			r.Post("/fix/reset", fixHandler.Reset)

			r.Get("/env", projectsHandler.GetEnv)
			r.Put("/env", projectsHandler.PutEnv)
			r.Post("/watch", projectsHandler.Watch)
			r.Delete("/watch", projectsHandler.Unwatch)
		})

		r.Get("/runs/{workflowID}", workflowsHandler.GetRun)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// Start begins serving HTTP requests. It blocks until the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("API server starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving HTTP: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	s.logger.Info("API server shutting down")
	return s.http.Shutdown(ctx)
}
