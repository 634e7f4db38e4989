package treasury

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/titan-brain/internal/brain"
)

// Repository persists the single-row treasury_state and the append-only
// sweep_records log, grounded on configregistry/repository.go's
// *sql.DB-direct, fmt.Errorf-wrapped style.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository wires the repository to the standard-profile database
// (treasury_state and sweep_records both live there).
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{db: db, log: log.With().Str("repository", "treasury").Logger()}
}

// LoadState reads the single treasury_state row, or a zero-value state if
// none has been written yet.
func (r *Repository) LoadState(ctx context.Context) (brain.TreasuryState, error) {
	var s brain.TreasuryState
	row := r.db.QueryRowContext(ctx, `
		SELECT futures_wallet, spot_wallet, high_watermark, total_swept, updated_at
		FROM treasury_state WHERE id = 1`)
	err := row.Scan(&s.FuturesWallet, &s.SpotWallet, &s.HighWatermark, &s.TotalSwept, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return brain.TreasuryState{}, nil
	}
	if err != nil {
		return brain.TreasuryState{}, fmt.Errorf("failed to load treasury state: %w", err)
	}
	return s, nil
}

// SaveState upserts the single treasury_state row.
func (r *Repository) SaveState(ctx context.Context, s brain.TreasuryState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO treasury_state (id, futures_wallet, spot_wallet, high_watermark, total_swept, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			futures_wallet = excluded.futures_wallet,
			spot_wallet = excluded.spot_wallet,
			high_watermark = excluded.high_watermark,
			total_swept = excluded.total_swept,
			updated_at = excluded.updated_at`,
		s.FuturesWallet, s.SpotWallet, s.HighWatermark, s.TotalSwept, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save treasury state: %w", err)
	}
	return nil
}

// RecordSweepRequested appends a pending sweep_records row.
func (r *Repository) RecordSweepRequested(ctx context.Context, id string, amount float64, tRequested int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sweep_records (id, amount, t_requested, status)
		VALUES (?, ?, ?, 'pending')`, id, amount, tRequested)
	if err != nil {
		return fmt.Errorf("failed to record sweep request: %w", err)
	}
	return nil
}

// CompleteSweep fills in the terminal status of a sweep_records row.
func (r *Repository) CompleteSweep(ctx context.Context, id, status, errMsg string, tCompleted int64) error {
	var errArg interface{}
	if errMsg != "" {
		errArg = errMsg
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE sweep_records SET status = ?, error = ?, t_completed = ? WHERE id = ?`,
		status, errArg, tCompleted, id)
	if err != nil {
		return fmt.Errorf("failed to complete sweep record %s: %w", id, err)
	}
	return nil
}
