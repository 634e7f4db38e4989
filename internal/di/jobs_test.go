package di

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestJobs_StartStop(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := testConfig(tmpDir)
	log := zerolog.Nop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := InitializeDatabases(cfg, log)
	require.NoError(t, err)
	defer container.Close()

	require.NoError(t, InitializeRepositories(container, log))
	require.NoError(t, InitializeServices(ctx, container, cfg, log))

	jobs := NewJobs(container, log)
	require.NoError(t, jobs.Start(ctx))

	// Starting again while already running is a no-op, not an error.
	require.NoError(t, jobs.Start(ctx))

	time.Sleep(10 * time.Millisecond)
	jobs.Stop()

	// Stopping an already-stopped set of jobs is also a no-op.
	jobs.Stop()
}
