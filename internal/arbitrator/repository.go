package arbitrator

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/titan-brain/internal/brain"
)

// Repository persists Decisions, keyed by signal_id, surviving restart so
// the deduplication index holds across process lifetimes.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository wires the repository to the standard-profile database.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{db: db, log: log.With().Str("repository", "arbitrator").Logger()}
}

// Get returns the persisted Decision for signalID, or nil if none exists.
func (r *Repository) Get(signalID string) (*brain.Decision, error) {
	row := r.db.QueryRow(`
		SELECT phase_id, approved, requested_notional, authorized_notional, reason, snapshot, processing_time_ms, t_decided
		FROM decisions WHERE signal_id = ?`, signalID)

	var d brain.Decision
	d.SignalID = signalID
	var approved int
	var reason, snapshotJSON string
	if err := row.Scan(&d.PhaseID, &approved, &d.RequestedNotional, &d.AuthorizedNotional, &reason, &snapshotJSON, &d.ProcessingTimeMS, &d.TDecided); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load decision %s: %w", signalID, err)
	}
	d.Approved = approved != 0
	d.Reason = brain.DecisionReason(reason)

	var snap struct {
		Allocation  brain.AllocationVector `json:"allocation"`
		Performance brain.PhaseSnapshot    `json:"performance"`
		Risk        brain.RiskSnapshot     `json:"risk"`
	}
	if snapshotJSON != "" {
		if err := json.Unmarshal([]byte(snapshotJSON), &snap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal decision snapshot %s: %w", signalID, err)
		}
	}
	d.AllocationSnapshot = snap.Allocation
	d.PerformanceSnapshot = snap.Performance
	d.RiskSnapshot = snap.Risk

	return &d, nil
}

// Save inserts a new Decision row. A duplicate insert (same signal_id) is
// a programming error — the caller must dedup via Get first — so the
// primary-key constraint is left to surface it rather than being
// swallowed as an UPSERT.
func (r *Repository) Save(d brain.Decision) error {
	snap := struct {
		Allocation  brain.AllocationVector `json:"allocation"`
		Performance brain.PhaseSnapshot    `json:"performance"`
		Risk        brain.RiskSnapshot     `json:"risk"`
	}{d.AllocationSnapshot, d.PerformanceSnapshot, d.RiskSnapshot}
	snapshotJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal decision snapshot for %s: %w", d.SignalID, err)
	}

	approved := 0
	if d.Approved {
		approved = 1
	}
	_, err = r.db.Exec(`
		INSERT INTO decisions (signal_id, phase_id, approved, requested_notional, authorized_notional, reason, snapshot, processing_time_ms, t_decided)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.SignalID, string(d.PhaseID), approved, d.RequestedNotional, d.AuthorizedNotional, string(d.Reason), string(snapshotJSON), d.ProcessingTimeMS, d.TDecided)
	if err != nil {
		return fmt.Errorf("failed to save decision %s: %w", d.SignalID, err)
	}
	return nil
}
