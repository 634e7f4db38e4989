// Package main is the entry point for the Brain capital-allocation and
// risk-arbitration service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/titan-brain/internal/config"
	"github.com/aristath/titan-brain/internal/di"
	"github.com/aristath/titan-brain/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	log.Info().Msg("starting brain")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, jobs, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire dependencies")
	}
	defer container.Close()

	if err := jobs.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start background jobs")
	}

	go func() {
		if err := container.HTTPServer.ListenAndServe(); err != nil {
			log.Fatal().Err(err).Msg("failed to start http server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("brain started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down brain")
	cancel()
	jobs.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := container.HTTPServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server forced to shutdown")
	}

	log.Info().Msg("brain stopped")
}
