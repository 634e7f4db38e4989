package bus

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Repository durably persists CMD/EVT envelopes to the bus_envelopes
// table (standard-profile database). DATA-stream messages never reach
// this type — they are memory-only.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository wires the repository to the standard-profile database.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{db: db, log: log.With().Str("repository", "bus").Logger()}
}

// SaveEnvelope persists one durable envelope, encoded with msgpack (the
// on-disk copy; HTTP-facing payloads elsewhere stay JSON).
func (r *Repository) SaveEnvelope(ctx context.Context, stream StreamKind, subject string, env Envelope, createdAt, availableAt time.Time) error {
	packed, err := msgpack.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope %s: %w", env.ID, err)
	}
	encoded := base64.StdEncoding.EncodeToString(packed)
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO bus_envelopes (stream, subject, id, envelope, created_at, available_at, delivered, acked, consumer_name)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, '')`,
		string(stream), subject, env.ID, encoded, createdAt.UnixMilli(), availableAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to persist envelope %s: %w", env.ID, err)
	}
	return nil
}

// SeenRecently reports whether an envelope id was already durably
// recorded on stream within the given window — the CMD dedup window
// (≥ 60s on envelope id).
func (r *Repository) SeenRecently(ctx context.Context, stream StreamKind, id string, since time.Time) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bus_envelopes WHERE stream = ? AND id = ? AND created_at >= ?`,
		string(stream), id, since.UnixMilli()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check envelope dedup for %s: %w", id, err)
	}
	return count > 0, nil
}

// MarkDelivered flags an envelope as delivered to at least one subscriber.
func (r *Repository) MarkDelivered(ctx context.Context, stream StreamKind, id, consumerName string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE bus_envelopes SET delivered = 1, consumer_name = ? WHERE stream = ? AND id = ?`,
		consumerName, string(stream), id)
	if err != nil {
		return fmt.Errorf("failed to mark envelope %s delivered: %w", id, err)
	}
	return nil
}

// Ack flags an envelope as acknowledged — the arbitrator acks only after
// the Decision it produced is durably persisted.
func (r *Repository) Ack(ctx context.Context, stream StreamKind, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE bus_envelopes SET acked = 1 WHERE stream = ? AND id = ?`, string(stream), id)
	if err != nil {
		return fmt.Errorf("failed to ack envelope %s: %w", id, err)
	}
	return nil
}

// pendingEnvelope is one row due for redelivery.
type pendingEnvelope struct {
	Stream  StreamKind
	Subject string
	Env     Envelope
}

// LoadPending returns delivered-but-unacked envelopes older than
// olderThan — candidates for at-least-once redelivery.
func (r *Repository) LoadPending(ctx context.Context, olderThan time.Duration) ([]pendingEnvelope, error) {
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	rows, err := r.db.QueryContext(ctx, `
		SELECT stream, subject, envelope FROM bus_envelopes
		WHERE delivered = 1 AND acked = 0 AND available_at <= ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending envelopes: %w", err)
	}
	defer rows.Close()

	var out []pendingEnvelope
	for rows.Next() {
		var stream, subject, encoded string
		if err := rows.Scan(&stream, &subject, &encoded); err != nil {
			return nil, fmt.Errorf("failed to scan pending envelope: %w", err)
		}
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			r.log.Warn().Err(err).Str("subject", subject).Msg("dropping malformed envelope to dead-letter")
			continue
		}
		var env Envelope
		if err := msgpack.Unmarshal(raw, &env); err != nil {
			r.log.Warn().Err(err).Str("subject", subject).Msg("dropping malformed envelope to dead-letter")
			continue
		}
		out = append(out, pendingEnvelope{Stream: StreamKind(stream), Subject: subject, Env: env})
	}
	return out, rows.Err()
}
