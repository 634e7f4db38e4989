// Package di provides dependency injection wiring and initialization.
package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/titan-brain/internal/config"
	"github.com/aristath/titan-brain/internal/httpapi"
	"github.com/rs/zerolog"
)

// Wire initializes every dependency in order and returns a fully
// constructed Container plus its background-job runner. On any failure it
// tears down whatever was already opened and returns the error.
//
// Order of operations:
// 1. Initialize databases
// 2. Initialize repositories
// 3. Initialize services
// 4. Build the HTTP server
// 5. Build (but do not yet start) the background job runner
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, *Jobs, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := InitializeRepositories(container, log); err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if err := InitializeServices(ctx, container, cfg, log); err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	container.HTTPServer = newHTTPServer(container, cfg, log)

	jobs := NewJobs(container, log)

	log.Info().Msg("dependency injection wiring completed successfully")
	return container, jobs, nil
}

func newHTTPServer(c *Container, cfg *config.Config, log zerolog.Logger) *httpapi.Server {
	return httpapi.New(httpapi.Config{
		Log:        log,
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
		Arbitrator: c.Arbitrator,
		Registry:   c.Registry,
		Allocation: c.Allocation,
		Treasury:   c.Treasury,
		Breaker:    c.Breaker,
		Bus:        c.Bus,
		Metrics:    c.Metrics,
		Equity:     c.Equity,
		StartedAt:  time.Now(),
	})
}
