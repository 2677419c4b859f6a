package main

import (
	"context"
	"fmt"
	"log/slog"

	"reframe/internal/config"
	"reframe/internal/logging"
	"reframe/internal/metrics"
	"reframe/internal/pipeline"
	"reframe/internal/publish"
	"reframe/internal/registry"
	"reframe/internal/tracing"
)

// session owns everything a foreground job needs and tears it down in order.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *registry.Store
	metrics  *metrics.Collectors
	server   *metrics.Server
	runner   *pipeline.Runner
	shutdown tracing.ShutdownFunc
}

func openSession(ctx context.Context, cmdCtx *commandContext, cfg *config.Config) (*session, error) {
	logger, err := cmdCtx.ensureLogger()
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, logger: logger}

	shutdown, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	s.shutdown = shutdown

	store, err := registry.Open(cfg)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open job registry: %w", err)
	}
	s.registry = store

	if cfg.Metrics.Enabled {
		s.metrics = metrics.New()
		server, err := metrics.Start(ctx, cfg.Metrics.Bind, s.metrics, logger)
		if err != nil {
			logging.WarnWithContext(logger, "metrics server unavailable", "metrics_start_failed",
				logging.String("bind", cfg.Metrics.Bind),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "free the port or change metrics.bind"),
				logging.String(logging.FieldImpact, "run continues without a /metrics endpoint"),
			)
		} else {
			s.server = server
		}
	}

	var publisher pipeline.Publisher
	if p := publish.New(cfg.Publish, logger); p != nil {
		publisher = p
	}

	runner, err := pipeline.FromConfig(cfg, store, publisher, s.metrics, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.runner = runner
	return s, nil
}

func (s *session) Close() {
	if s == nil {
		return
	}
	if s.server != nil {
		_ = s.server.Shutdown(context.Background())
	}
	if s.registry != nil {
		_ = s.registry.Close()
	}
	if s.shutdown != nil {
		if err := s.shutdown(context.Background()); err != nil {
			s.logger.Debug("tracing shutdown", logging.Error(err))
		}
	}
}
