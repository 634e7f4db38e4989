package breaker

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// Repository appends breaker_events to the ledger-profile database — the
// halt audit trail is never mutated or deleted once written.
type Repository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewRepository wires the repository to the ledger-profile database.
func NewRepository(ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{ledgerDB: ledgerDB, log: log.With().Str("repository", "breaker").Logger()}
}

// RecordTransition implements EventSink.
func (r *Repository) RecordTransition(ev TransitionEvent) error {
	var operatorID interface{}
	if ev.OperatorID != "" {
		operatorID = ev.OperatorID
	}
	_, err := r.ledgerDB.Exec(`
		INSERT INTO breaker_events (prev, next, reason, equity, operator_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(ev.Prev), string(ev.Next), ev.Reason, ev.Equity, operatorID, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record breaker transition: %w", err)
	}
	return nil
}
