package performance

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/titan-brain/internal/brain"
)

// Repository persists per-phase trade outcomes to phase_trades, so the
// rolling Sharpe window in Tracker survives a restart.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository wires the repository to the standard-profile database.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{db: db, log: log.With().Str("repository", "performance").Logger()}
}

// RecordFill inserts a terminal fill's PnL if (phase_id, signal_id) hasn't
// been recorded before, and reports whether this call was the one that
// recorded it. A replayed fill — including one replayed after a process
// restart, when no in-memory dedup state survives — is ignored rather than
// double-counted: the insert is a no-op and inserted comes back false, so
// the caller knows not to re-apply the fill's PnL to equity or the
// performance tracker.
func (r *Repository) RecordFill(phase brain.PhaseID, signalID string, pnlUSD float64, tFill int64) (inserted bool, err error) {
	res, err := r.db.Exec(`
		INSERT OR IGNORE INTO phase_trades (phase_id, signal_id, pnl_usd, t_fill)
		VALUES (?, ?, ?, ?)`,
		string(phase), signalID, pnlUSD, tFill)
	if err != nil {
		return false, fmt.Errorf("failed to record phase trade %s/%s: %w", phase, signalID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected for phase trade %s/%s: %w", phase, signalID, err)
	}
	return n > 0, nil
}

// LoadSince returns all samples for phase with t_fill >= since, ordered
// oldest-first, for seeding a Tracker on startup.
func (r *Repository) LoadSince(phase brain.PhaseID, since int64) ([]Sample, error) {
	rows, err := r.db.Query(`
		SELECT pnl_usd, t_fill FROM phase_trades
		WHERE phase_id = ? AND t_fill >= ?
		ORDER BY t_fill ASC`, string(phase), since)
	if err != nil {
		return nil, fmt.Errorf("failed to load phase trades for %s: %w", phase, err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		if err := rows.Scan(&s.PnLUSD, &s.TFill); err != nil {
			return nil, fmt.Errorf("failed to scan phase trade for %s: %w", phase, err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// LoadAllPhases returns the distinct phase ids with persisted trades, so
// startup seeding can iterate without hardcoding the phase set.
func (r *Repository) LoadAllPhases() ([]brain.PhaseID, error) {
	rows, err := r.db.Query(`SELECT DISTINCT phase_id FROM phase_trades`)
	if err != nil {
		return nil, fmt.Errorf("failed to load phase ids: %w", err)
	}
	defer rows.Close()

	var phases []brain.PhaseID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan phase id: %w", err)
		}
		phases = append(phases, brain.PhaseID(id))
	}
	return phases, rows.Err()
}
