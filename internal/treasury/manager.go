// Package treasury implements the Capital Flow Manager: high-watermark
// tracking and scheduled/threshold-triggered profit sweeps from the
// futures wallet to the spot wallet, bounded by a reserve floor.
package treasury

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/titan-brain/internal/brain"
)

// riseTriggerFrac is the fixed threshold (rises ≥10% above the prior high
// watermark) used to decide whether a sweep is even worth considering;
// the configurable SweepThresholdFrac then decides whether the
// considered sweep actually executes.
const riseTriggerFrac = 0.10

// SweepTrigger names why an evaluation was considered.
type SweepTrigger string

const (
	TriggerSchedule SweepTrigger = "schedule"
	TriggerRise     SweepTrigger = "rise"
)

// Params are the registry-resolved thresholds.
type Params struct {
	SweepThresholdFrac float64
	MaxRetries         int
	RetryBaseDelayMS   int
}

// Executor moves funds from the futures wallet to the spot wallet on the
// exchange side. A failure leaves both local and remote balances untouched.
type Executor interface {
	MoveFuturesToSpot(ctx context.Context, amount float64) error
}

// EvaluateResult reports what one evaluation did.
type EvaluateResult struct {
	Attempted bool
	Triggers  []SweepTrigger
	Swept     bool
	Amount    float64
	Error     error
}

// Manager owns the treasury state and the sweep decision.
type Manager struct {
	mu       sync.Mutex
	state    brain.TreasuryState
	repo     *Repository
	executor Executor
	log      zerolog.Logger
}

// New builds a Manager seeded with the persisted treasury state.
func New(state brain.TreasuryState, repo *Repository, executor Executor, log zerolog.Logger) *Manager {
	return &Manager{
		state:    state,
		repo:     repo,
		executor: executor,
		log:      log.With().Str("component", "treasury").Logger(),
	}
}

// Snapshot returns the current treasury state.
func (m *Manager) Snapshot() brain.TreasuryState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ObserveFuturesWallet records the latest known futures wallet balance,
// without itself triggering a sweep. The scheduler decides when to
// Evaluate.
func (m *Manager) ObserveFuturesWallet(amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.FuturesWallet = amount
}

// ShouldConsiderRiseTrigger reports whether the futures wallet has risen
// far enough above the prior high watermark to be worth evaluating.
func (m *Manager) ShouldConsiderRiseTrigger() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.HighWatermark <= 0 {
		return false
	}
	return (m.state.FuturesWallet-m.state.HighWatermark)/m.state.HighWatermark >= riseTriggerFrac
}

// Evaluate considers a sweep. The caller coalesces any triggers that fire
// in the same tick into a single call — Evaluate never attempts more
// than one sweep per invocation and never advances more than one retry
// counter per invocation.
func (m *Manager) Evaluate(ctx context.Context, triggers []SweepTrigger, p Params, now time.Time) (EvaluateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	excess := m.state.FuturesWallet - m.state.HighWatermark
	if excess <= 0 {
		return EvaluateResult{Attempted: false, Triggers: triggers}, nil
	}
	threshold := p.SweepThresholdFrac * m.state.HighWatermark
	if !(excess > threshold) {
		return EvaluateResult{Attempted: false, Triggers: triggers}, nil
	}
	if m.state.FuturesWallet-excess < m.state.ReserveFloor {
		m.log.Warn().Float64("excess", excess).Float64("reserve_floor", m.state.ReserveFloor).
			Msg("sweep excess would breach reserve floor, skipping")
		return EvaluateResult{Attempted: false, Triggers: triggers}, nil
	}

	id := uuid.NewString()
	tRequested := now.UnixMilli()
	if err := m.repo.RecordSweepRequested(ctx, id, excess, tRequested); err != nil {
		return EvaluateResult{}, fmt.Errorf("record sweep request: %w", err)
	}

	policy := BackoffPolicy{
		BaseDelay:  time.Duration(p.RetryBaseDelayMS) * time.Millisecond,
		Multiplier: 2,
		MaxRetries: p.MaxRetries,
	}
	sweepErr := WithBackoff(ctx, policy, func() error {
		return m.executor.MoveFuturesToSpot(ctx, excess)
	})

	result := EvaluateResult{Attempted: true, Triggers: triggers, Amount: excess}
	if sweepErr != nil {
		result.Error = sweepErr
		if err := m.repo.CompleteSweep(ctx, id, "failed", sweepErr.Error(), now.UnixMilli()); err != nil {
			m.log.Error().Err(err).Msg("failed to record sweep failure")
		}
		return result, nil
	}

	preSweepPeak := m.state.FuturesWallet
	m.state.FuturesWallet -= excess
	m.state.SpotWallet += excess
	m.state.HighWatermark = preSweepPeak
	m.state.TotalSwept += excess
	m.state.UpdatedAt = now.UnixMilli()

	if err := m.repo.SaveState(ctx, m.state); err != nil {
		return EvaluateResult{}, fmt.Errorf("persist swept treasury state: %w", err)
	}
	if err := m.repo.CompleteSweep(ctx, id, "completed", "", now.UnixMilli()); err != nil {
		m.log.Error().Err(err).Msg("failed to record sweep completion")
	}

	result.Swept = true
	return result, nil
}
