package main

import (
	"context"
	"fmt"

	"github.com/devrev/organsim/internal/config"
	"github.com/devrev/organsim/internal/logging"
	"github.com/devrev/organsim/internal/metrics"
	"github.com/devrev/organsim/internal/orchestrator"
	"github.com/devrev/organsim/internal/server"
	"github.com/devrev/organsim/internal/simulator"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func setup(role config.Role, configPath string) (*config.Config, *zap.Logger, *metrics.Metrics, error) {
	cfg, err := config.Load(role, configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging, string(role))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("configuration loaded",
		zap.String("addr", cfg.Server.Addr()),
		zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
		zap.Int("metrics_port", cfg.Metrics.Port),
	)

	return cfg, logger, metrics.NewMetrics(string(role)), nil
}

func runOrgan(ctx context.Context, role config.Role, configPath string) error {
	cfg, logger, m, err := setup(role, configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	kind, _ := role.Organ()
	organ, err := simulator.New(kind, simulator.NewSource(cfg.Simulator.Seed))
	if err != nil {
		return err
	}

	store, err := server.NewSessionStore(cfg.Session, kind, logger)
	if err != nil {
		logger.Error("failed to initialize session store", zap.Error(err))
		return err
	}
	defer store.Close()
	logger.Info("session store initialized", zap.String("backend", cfg.Session.Backend))

	publisher, err := server.NewPublisher(cfg.Telemetry, logger)
	if err != nil {
		logger.Error("failed to initialize telemetry", zap.Error(err))
		return err
	}
	defer publisher.Close()
	logger.Info("telemetry initialized", zap.String("sink", cfg.Telemetry.Sink))

	srv := server.NewOrganServer(cfg, organ, store, publisher, m, logger)
	return serve(ctx, cfg, srv, m, logger)
}

func runOrchestrator(ctx context.Context, configPath string) error {
	cfg, logger, m, err := setup(config.RoleOrchestrator, configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	registry, err := orchestrator.NewRegistry(cfg.Orchestrator.Organs)
	if err != nil {
		return err
	}
	for _, e := range registry.Entries() {
		logger.Info("organ registered", zap.String("organ", string(e.Key)), zap.String("url", e.URL))
	}

	client := orchestrator.NewClient(cfg.Orchestrator.Timeout, m, logger)
	agg := orchestrator.NewAggregator(registry, client, m, logger)

	srv := server.NewOrchestratorServer(cfg, agg, m, logger)
	return serve(ctx, cfg, srv, m, logger)
}

// serve runs the API and metrics servers until ctx is cancelled or one of
// them fails, then shuts both down within the configured timeout.
func serve(ctx context.Context, cfg *config.Config, srv *server.Server, m *metrics.Metrics, logger *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	var metricsServer *metrics.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewMetricsServer(m, cfg.Metrics.Port, cfg.Metrics.Path, logger)
		g.Go(metricsServer.Start)
	}
	g.Go(srv.Start)

	m.SetHealthStatus(true)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")
		m.SetHealthStatus(false)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown HTTP server", zap.Error(err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown metrics server", zap.Error(err))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
