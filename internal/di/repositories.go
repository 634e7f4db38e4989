// Package di provides dependency injection for repository implementations.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/titan-brain/internal/arbitrator"
	"github.com/aristath/titan-brain/internal/breaker"
	"github.com/aristath/titan-brain/internal/bus"
	"github.com/aristath/titan-brain/internal/configregistry"
	"github.com/aristath/titan-brain/internal/performance"
	"github.com/aristath/titan-brain/internal/treasury"
)

// InitializeRepositories creates all repositories and stores them in the
// container. Config overrides, decisions, bus envelopes, phase trades, and
// treasury state all live in BrainDB; config receipts and breaker events
// live in LedgerDB.
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	brainDB := container.BrainDB.Conn()
	ledgerDB := container.LedgerDB.Conn()

	container.ConfigRepo = configregistry.NewRepository(brainDB, ledgerDB, log)
	container.ArbitratorRepo = arbitrator.NewRepository(brainDB, log)
	container.BusRepo = bus.NewRepository(brainDB, log)
	container.PerfRepo = performance.NewRepository(brainDB, log)
	container.BreakerRepo = breaker.NewRepository(ledgerDB, log)
	container.TreasuryRepo = treasury.NewRepository(brainDB, log)

	log.Info().Msg("all repositories initialized")
	return nil
}
