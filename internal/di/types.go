// Package di wires the Brain's components into a single running process,
// following an ordered steps-with-cleanup-on-error pattern: databases ->
// repositories -> services -> background work.
package di

import (
	"github.com/aristath/titan-brain/internal/allocation"
	"github.com/aristath/titan-brain/internal/arbitrator"
	"github.com/aristath/titan-brain/internal/breaker"
	"github.com/aristath/titan-brain/internal/bus"
	"github.com/aristath/titan-brain/internal/configregistry"
	"github.com/aristath/titan-brain/internal/database"
	"github.com/aristath/titan-brain/internal/equity"
	"github.com/aristath/titan-brain/internal/httpapi"
	"github.com/aristath/titan-brain/internal/ingest"
	"github.com/aristath/titan-brain/internal/metrics"
	"github.com/aristath/titan-brain/internal/performance"
	"github.com/aristath/titan-brain/internal/risk"
	"github.com/aristath/titan-brain/internal/treasury"
)

// Container holds every wired component of a running Brain process. It is
// the single source of truth handed back by Wire; main holds it only long
// enough to start the background loops and the HTTP server.
type Container struct {
	// Databases
	BrainDB  *database.DB // standard-profile: mutable working state
	LedgerDB *database.DB // ledger-profile: append-only audit trail

	// Config domain
	ConfigRepo *configregistry.Repository
	Registry   *configregistry.Registry

	// Core engines
	Allocation  *allocation.Engine
	Performance *performance.Tracker
	PerfRepo    *performance.Repository
	Risk        *risk.Guardian
	BreakerRepo *breaker.Repository
	Breaker     *breaker.Breaker
	Equity      *equity.Tracker
	TreasuryRepo *treasury.Repository
	Treasury    *treasury.Manager

	// Arbitrator plumbing
	ArbitratorRepo *arbitrator.Repository
	Bus            *bus.Bus
	BusRepo        *bus.Repository
	Publisher      *bus.ArbitratorPublisher
	Archiver       *bus.Archiver
	Metrics        *metrics.Registry
	Arbitrator     *arbitrator.Arbitrator

	// Ingestion
	FillListener *ingest.FillListener

	// Treasury sweep scheduler
	TreasuryScheduler *treasury.Scheduler

	// HTTP surface
	HTTPServer *httpapi.Server
}

// Close releases every resource the Container owns, in reverse dependency
// order. Safe to call on a partially-built Container (nil fields are
// skipped).
func (c *Container) Close() {
	if c.BrainDB != nil {
		_ = c.BrainDB.Close()
	}
	if c.LedgerDB != nil {
		_ = c.LedgerDB.Close()
	}
}
