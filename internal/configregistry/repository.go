package configregistry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/titan-brain/internal/brain"
	"github.com/aristath/titan-brain/internal/database"
)

// Repository persists config overrides and receipts. Overrides live in the
// standard-profile database; receipts live in the ledger-profile database
// and are never updated or deleted, only appended.
type Repository struct {
	overridesDB *sql.DB
	ledgerDB    *sql.DB
	log         zerolog.Logger
}

// NewRepository wires the registry's two backing databases.
func NewRepository(overridesDB, ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		overridesDB: overridesDB,
		ledgerDB:    ledgerDB,
		log:         log.With().Str("repository", "configregistry").Logger(),
	}
}

// GetActiveOverride returns the active override for key, or nil if none.
func (r *Repository) GetActiveOverride(key string) (*brain.Override, error) {
	row := r.overridesDB.QueryRow(`
		SELECT id, key, value, previous_value, operator_id, reason, expires_at, created_at
		FROM config_overrides WHERE key = ? AND active = 1`, key)
	return scanOverride(row)
}

// GetAllActiveOverrides loads every active override, keyed by config key.
func (r *Repository) GetAllActiveOverrides() (map[string]*brain.Override, error) {
	rows, err := r.overridesDB.Query(`
		SELECT id, key, value, previous_value, operator_id, reason, expires_at, created_at
		FROM config_overrides WHERE active = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active overrides: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*brain.Override)
	for rows.Next() {
		ov, err := scanOverrideRows(rows)
		if err != nil {
			r.log.Warn().Err(err).Msg("failed to scan override row")
			continue
		}
		result[ov.Key] = ov
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOverride(row *sql.Row) (*brain.Override, error) {
	ov, err := scanOverrideGeneric(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ov, err
}

func scanOverrideRows(rows *sql.Rows) (*brain.Override, error) {
	return scanOverrideGeneric(rows)
}

func scanOverrideGeneric(s rowScanner) (*brain.Override, error) {
	var ov brain.Override
	var valueJSON, prevJSON string
	var expiresAt sql.NullInt64
	if err := s.Scan(&ov.ID, &ov.Key, &valueJSON, &prevJSON, &ov.OperatorID, &ov.Reason, &expiresAt, &ov.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(valueJSON), &ov.Value); err != nil {
		return nil, fmt.Errorf("failed to unmarshal override value for %s: %w", ov.Key, err)
	}
	if err := json.Unmarshal([]byte(prevJSON), &ov.PreviousValue); err != nil {
		return nil, fmt.Errorf("failed to unmarshal override previous_value for %s: %w", ov.Key, err)
	}
	if expiresAt.Valid {
		v := expiresAt.Int64
		ov.ExpiresAt = &v
	}
	ov.Active = true
	return &ov, nil
}

// CreateOverride deactivates any existing active override for the key and
// inserts the new one, atomically.
func (r *Repository) CreateOverride(ov brain.Override) error {
	return database.WithTransaction(r.overridesDB, func(tx *sql.Tx) error {
		now := time.Now().Unix()
		if _, err := tx.Exec(`
			UPDATE config_overrides SET active = 0, deactivated_at = ?, deactivated_by = ?
			WHERE key = ? AND active = 1`, now, ov.OperatorID, ov.Key); err != nil {
			return fmt.Errorf("failed to deactivate prior override for %s: %w", ov.Key, err)
		}

		valueJSON, err := json.Marshal(ov.Value)
		if err != nil {
			return fmt.Errorf("failed to marshal override value: %w", err)
		}
		prevJSON, err := json.Marshal(ov.PreviousValue)
		if err != nil {
			return fmt.Errorf("failed to marshal override previous_value: %w", err)
		}

		_, err = tx.Exec(`
			INSERT INTO config_overrides (id, key, value, previous_value, operator_id, reason, expires_at, active, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)`,
			ov.ID, ov.Key, string(valueJSON), string(prevJSON), ov.OperatorID, ov.Reason, ov.ExpiresAt, ov.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert override for %s: %w", ov.Key, err)
		}
		return nil
	})
}

// DeactivateOverride marks the active override for key inactive, recording
// who deactivated it and why (used for both rollback and expiry sweep).
func (r *Repository) DeactivateOverride(key, deactivatedBy string) error {
	_, err := r.overridesDB.Exec(`
		UPDATE config_overrides SET active = 0, deactivated_at = ?, deactivated_by = ?
		WHERE key = ? AND active = 1`, time.Now().Unix(), deactivatedBy, key)
	if err != nil {
		return fmt.Errorf("failed to deactivate override for %s: %w", key, err)
	}
	return nil
}

// InsertReceipt appends a signed receipt to the ledger. Receipts are never
// mutated or deleted once written.
func (r *Repository) InsertReceipt(rc brain.Receipt) error {
	prevJSON, err := json.Marshal(rc.PreviousValue)
	if err != nil {
		return fmt.Errorf("failed to marshal receipt previous_value: %w", err)
	}
	newJSON, err := json.Marshal(rc.NewValue)
	if err != nil {
		return fmt.Errorf("failed to marshal receipt new_value: %w", err)
	}
	_, err = r.ledgerDB.Exec(`
		INSERT INTO config_receipts (id, key, action, previous_value, new_value, operator_id, reason, expires_at, signature, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rc.ID, rc.Key, string(rc.Action), string(prevJSON), string(newJSON), rc.OperatorID, rc.Reason, rc.ExpiresAt, rc.Signature, rc.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert receipt for %s: %w", rc.Key, err)
	}
	return nil
}

// ListReceipts returns receipts for a key (or all keys, if key == "") in
// timestamp order.
func (r *Repository) ListReceipts(key string) ([]brain.Receipt, error) {
	var rows *sql.Rows
	var err error
	if key == "" {
		rows, err = r.ledgerDB.Query(`
			SELECT id, key, action, previous_value, new_value, operator_id, reason, expires_at, signature, timestamp
			FROM config_receipts ORDER BY timestamp ASC`)
	} else {
		rows, err = r.ledgerDB.Query(`
			SELECT id, key, action, previous_value, new_value, operator_id, reason, expires_at, signature, timestamp
			FROM config_receipts WHERE key = ? ORDER BY timestamp ASC`, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var out []brain.Receipt
	for rows.Next() {
		var rc brain.Receipt
		var action string
		var prevJSON, newJSON string
		var expiresAt sql.NullInt64
		if err := rows.Scan(&rc.ID, &rc.Key, &action, &prevJSON, &newJSON, &rc.OperatorID, &rc.Reason, &expiresAt, &rc.Signature, &rc.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		rc.Action = brain.ReceiptAction(action)
		if err := json.Unmarshal([]byte(prevJSON), &rc.PreviousValue); err != nil {
			return nil, fmt.Errorf("failed to unmarshal receipt previous_value: %w", err)
		}
		if err := json.Unmarshal([]byte(newJSON), &rc.NewValue); err != nil {
			return nil, fmt.Errorf("failed to unmarshal receipt new_value: %w", err)
		}
		if expiresAt.Valid {
			v := expiresAt.Int64
			rc.ExpiresAt = &v
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}
