// Package main provides the entry point for the dojo worker service.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/dojo/internal/app"
	"github.com/thebtf/dojo/internal/config"
)

var Version = "dev"

func main() {
	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to create data directory")
	}
	cfg := config.Get()

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info().
		Str("version", Version).
		Msg("Starting dojo worker")

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create app")
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("Database close error")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.EnsureTaxonomy(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to seed taxonomy")
		return
	}

	if err := a.Serve(ctx, Version, config.GetWorkerPort()); err != nil {
		logger.Error().Err(err).Msg("Shutdown error")
	}

	logger.Info().Msg("Worker shutdown complete")
}
