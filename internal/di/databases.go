package di

import (
	"fmt"

	"github.com/aristath/titan-brain/internal/config"
	"github.com/aristath/titan-brain/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the Brain's two SQLite databases — the
// standard-profile working-state store and the ledger-profile audit
// trail — and applies their schemas.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	brainDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/brain.db",
		Profile: database.ProfileStandard,
		Name:    "brain",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize brain database: %w", err)
	}
	container.BrainDB = brainDB

	ledgerDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/ledger.db",
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		brainDB.Close()
		return nil, fmt.Errorf("failed to initialize ledger database: %w", err)
	}
	container.LedgerDB = ledgerDB

	for _, db := range []*database.DB{brainDB, ledgerDB} {
		if err := db.Migrate(); err != nil {
			brainDB.Close()
			ledgerDB.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Msg("brain and ledger databases initialized and schemas applied")
	return container, nil
}
