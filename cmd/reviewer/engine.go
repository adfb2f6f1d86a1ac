package main

import (
	"context"

	"go.uber.org/zap"

	"chess_review/internal/bootstrap"
	"chess_review/internal/repository"
	"chess_review/internal/usecase/coordinator"
)

// startCoordinator loads config, applies flag overrides and starts the engine.
func startCoordinator(ctx context.Context, g *globalFlags, log *zap.SugaredLogger) (*bootstrap.Config, *coordinator.Coordinator, error) {
	cfg, err := bootstrap.Setup(g.config)
	if err != nil {
		return nil, nil, exitError(2, "failed to load config: %v", err)
	}
	if g.engine != "" {
		cfg.EnginePath = g.engine
	}

	engine := repository.NewEngineFromConfig(cfg, log)
	if err := engine.Start(ctx); err != nil {
		return nil, nil, exitError(3, "failed to start engine %s: %v", cfg.EnginePath, err)
	}
	return cfg, coordinator.New(engine, cfg.EngineRequestTimeout, log), nil
}
