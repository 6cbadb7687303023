// Package server wires handlers, middleware and health checks into the HTTP
// servers of the organ services and the orchestrator.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/devrev/organsim/internal/config"
	apierrors "github.com/devrev/organsim/internal/errors"
	"github.com/devrev/organsim/internal/handler"
	"github.com/devrev/organsim/internal/health"
	"github.com/devrev/organsim/internal/metrics"
	"github.com/devrev/organsim/internal/middleware"
	"github.com/devrev/organsim/internal/orchestrator"
	"github.com/devrev/organsim/internal/session"
	"github.com/devrev/organsim/internal/simulator"
	"github.com/devrev/organsim/internal/telemetry"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server represents one HTTP service.
type Server struct {
	router       *mux.Router
	handler      http.Handler
	httpServer   *http.Server
	healthCheck  *health.HealthCheck
	errorHandler *apierrors.Handler
	metrics      *metrics.Metrics
	logger       *zap.Logger
	cfg          *config.Config
}

func newServer(cfg *config.Config, m *metrics.Metrics, hc *health.HealthCheck, logger *zap.Logger) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		healthCheck:  hc,
		errorHandler: apierrors.NewHandler(logger),
		metrics:      m,
		logger:       logger,
		cfg:          cfg,
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// NewOrganServer creates the server of one organ service.
func NewOrganServer(
	cfg *config.Config,
	organ simulator.Organ,
	store session.Store,
	publisher telemetry.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Server {
	hc := health.NewHealthCheck(map[string]string{"organ": string(organ.Kind())}, logger)
	hc.AddCheck("session_store", store)

	s := newServer(cfg, m, hc, logger)
	h := handler.NewOrganHandlers(organ, store, publisher, m, s.errorHandler, logger, handler.OrganOptions{
		SampleInterval:   cfg.Simulator.SampleInterval,
		MaxCount:         cfg.Simulator.MaxCount,
		TelemetryTimeout: cfg.Telemetry.Timeout,
	})

	s.setupRoutes(func(r *mux.Router) {
		r.HandleFunc("/", h.Index).Methods(http.MethodGet)

		api := r.PathPrefix("/api/" + string(organ.Kind())).Subrouter()
		api.HandleFunc("/status", h.Status).Methods(http.MethodGet)
		api.HandleFunc("/data", h.Data).Methods(http.MethodGet)
		api.HandleFunc("/simulate/{condition}", h.Simulate).Methods(http.MethodPost)
		api.HandleFunc("/parameters", h.GetParameters).Methods(http.MethodGet)
		api.HandleFunc("/parameters", h.UpdateParameters).Methods(http.MethodPost)
	})
	return s
}

// NewOrchestratorServer creates the orchestrator server.
func NewOrchestratorServer(cfg *config.Config, agg *orchestrator.Aggregator, m *metrics.Metrics, logger *zap.Logger) *Server {
	hc := health.NewHealthCheck(map[string]string{"service": "orchestration"}, logger)

	s := newServer(cfg, m, hc, logger)
	h := handler.NewOrchestrationHandlers(agg, s.errorHandler, logger, cfg.Simulator.MaxCount)

	s.setupRoutes(func(r *mux.Router) {
		r.HandleFunc("/", h.Index).Methods(http.MethodGet)

		api := r.PathPrefix("/api/orchestration").Subrouter()
		api.HandleFunc("/health", h.Health).Methods(http.MethodGet)
		api.HandleFunc("/overview", h.Overview).Methods(http.MethodGet)
		api.HandleFunc("/data/all", h.AllData).Methods(http.MethodGet)
		api.HandleFunc("/data/{organ}", h.OrganData).Methods(http.MethodGet)
		api.HandleFunc("/status/{organ}", h.OrganStatus).Methods(http.MethodGet)
		api.HandleFunc("/simulate", h.Simulate).Methods(http.MethodPost)
		api.HandleFunc("/simulate/{organ}/{condition}", h.SimulateOrgan).Methods(http.MethodPost)
		api.HandleFunc("/parameters", h.UpdateParameters).Methods(http.MethodPost)
		api.HandleFunc("/parameters/{organ}", h.UpdateOrganParameters).Methods(http.MethodPost)
		api.HandleFunc("/organs", h.Organs).Methods(http.MethodGet)
	})
	return s
}

// setupRoutes registers the shared endpoints plus the service routes and
// wraps the router in the middleware chain.
func (s *Server) setupRoutes(routes func(r *mux.Router)) {
	// Route-aware middleware runs inside the router.
	if s.metrics != nil {
		s.router.Use(metrics.MetricsMiddleware(s.metrics))
	}

	s.router.HandleFunc("/health", s.healthCheck.LivenessHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.healthCheck.ReadinessHandler).Methods(http.MethodGet)

	routes(s.router)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errorHandler.WriteNotFound(w, r, "endpoint not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errorHandler.HandleError(w, r, apierrors.MethodNotAllowed(r.Method, r.URL.Path))
	})

	chain := []func(http.Handler) http.Handler{
		middleware.Recovery(s.errorHandler, s.logger),
		middleware.RequestID,
		middleware.Session(s.errorHandler),
		middleware.Logging(s.logger),
		middleware.CORS(s.cfg.CORS.AllowedOrigins),
	}

	if s.cfg.RateLimiter.Enabled {
		rateLimiter := middleware.NewRateLimiter(
			s.cfg.RateLimiter.RequestsPerSecond,
			s.cfg.RateLimiter.BurstSize,
			s.errorHandler,
			s.logger,
		)
		chain = append(chain, rateLimiter.Limit)
	}

	chain = append(chain, middleware.Timeout(s.cfg.Server.RequestTimeout))

	s.handler = middleware.Chain(chain...)(s.router)
	s.httpServer.Handler = s.handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown marks the service not ready and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	s.healthCheck.SetReady(false)
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the fully wrapped http.Handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}
