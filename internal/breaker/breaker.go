// Package breaker implements the emergency-halt state machine:
// INACTIVE -> SOFT_HALTED (auto-exit on cooldown) and (from any state)
// -> HARD_HALTED (exits only via operator reset).
//
// State-machine shape grounded on
// internal/modules/trading/safety_service.go's HARD/SOFT fail-safe
// classification (a trade is rejected outright vs. flagged for review);
// here the same two severities gate the whole intent pipeline instead of
// one trade.
package breaker

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/titan-brain/internal/brain"
)

// Params are the registry-resolved breaker thresholds.
type Params struct {
	ConsecutiveLossLimit        int
	ConsecutiveLossWindowSecs   float64
	SoftCooldownSecs            float64
	MaxDailyDrawdown            float64
	MinEquityUSD                float64
}

// loss records one realized loss for the consecutive-loss window.
type loss struct{ at int64 }

// TransitionEvent is the append-only audit record persisted on every
// state transition.
type TransitionEvent struct {
	Prev       brain.BreakerStateName
	Next       brain.BreakerStateName
	Reason     string
	Equity     float64
	OperatorID string
	Timestamp  int64
}

// EventSink persists transition events; implemented by Repository.
type EventSink interface {
	RecordTransition(ev TransitionEvent) error
}

// Breaker owns the halt state and the triggers that move it.
type Breaker struct {
	mu     sync.Mutex
	state  brain.BreakerState
	losses []loss
	sink   EventSink
	log    zerolog.Logger
}

// New builds a Breaker seeded with the persisted state.
func New(state brain.BreakerState, sink EventSink, log zerolog.Logger) *Breaker {
	if state.State == "" {
		state.State = brain.BreakerInactive
	}
	return &Breaker{state: state, sink: sink, log: log.With().Str("component", "breaker").Logger()}
}

// Snapshot returns the current state, auto-exiting SOFT_HALTED to INACTIVE
// first if the cooldown has elapsed.
func (b *Breaker) Snapshot(now time.Time) brain.BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeExpireSoftHaltLocked(now)
	return b.state
}

func (b *Breaker) maybeExpireSoftHaltLocked(now time.Time) {
	if b.state.State == brain.BreakerSoftHalted && b.state.CooldownUntil > 0 && b.state.CooldownUntil < now.UnixMilli() {
		b.transitionLocked(brain.BreakerInactive, "cooldown_elapsed", 0, "", now)
		b.state.ConsecutiveLosses = 0
		b.state.CooldownUntil = 0
		b.state.TriggeredAt = 0
	}
}

// RecordLoss registers a realized loss at `tFill` and evaluates the
// consecutive-loss trigger against the rolling window.
func (b *Breaker) RecordLoss(tFill int64, p Params, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeExpireSoftHaltLocked(now)

	b.losses = append(b.losses, loss{at: tFill})
	cutoff := now.UnixMilli() - int64(p.ConsecutiveLossWindowSecs*1000)
	kept := b.losses[:0:0]
	for _, l := range b.losses {
		if l.at >= cutoff {
			kept = append(kept, l)
		}
	}
	b.losses = kept

	if b.state.State == brain.BreakerInactive && len(b.losses) >= p.ConsecutiveLossLimit {
		b.state.ConsecutiveLosses = len(b.losses)
		b.state.CooldownUntil = now.UnixMilli() + int64(p.SoftCooldownSecs*1000)
		b.state.TriggeredAt = now.UnixMilli()
		b.transitionLocked(brain.BreakerSoftHalted, "consecutive_loss_limit", 0, "", now)
	}
}

// RecordWin clears the consecutive-loss streak (a winning trade resets it).
func (b *Breaker) RecordWin() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.losses = nil
}

// EvaluateEquity checks the hard-halt equity/drawdown triggers, which fire
// from any state.
func (b *Breaker) EvaluateEquity(equity, dailyDrawdownFrac float64, p Params, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.State == brain.BreakerHardHalted {
		return
	}
	switch {
	case dailyDrawdownFrac >= p.MaxDailyDrawdown:
		b.state.TriggeredAt = now.UnixMilli()
		b.transitionLocked(brain.BreakerHardHalted, "max_daily_drawdown", equity, "", now)
	case equity <= p.MinEquityUSD:
		b.state.TriggeredAt = now.UnixMilli()
		b.transitionLocked(brain.BreakerHardHalted, "min_equity", equity, "", now)
	}
}

// Reset is the only way out of HARD_HALTED: an operator reset, recorded
// with the caller-supplied operatorID. Reset does not authenticate the
// operator.
func (b *Breaker) Reset(operatorID string, equity float64, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.ConsecutiveLosses = 0
	b.state.CooldownUntil = 0
	b.state.TriggeredAt = 0
	b.losses = nil
	b.transitionLocked(brain.BreakerInactive, "operator_reset", equity, operatorID, now)
}

// transitionLocked records the event and mutates state; caller holds mu.
func (b *Breaker) transitionLocked(next brain.BreakerStateName, reason string, equity float64, operatorID string, now time.Time) {
	prev := b.state.State
	if prev == next {
		return
	}
	ev := TransitionEvent{Prev: prev, Next: next, Reason: reason, Equity: equity, OperatorID: operatorID, Timestamp: now.UnixMilli()}
	if b.sink != nil {
		if err := b.sink.RecordTransition(ev); err != nil {
			b.log.Error().Err(err).Msg("failed to record breaker transition")
		}
	}
	b.state.State = next
	b.state.Reason = reason
	b.log.Warn().Str("prev", string(prev)).Str("next", string(next)).Str("reason", reason).Msg("breaker state transition")
}

// VetoReason reports whether the breaker's current state blocks new
// intents, and if so, the shared BREAKER veto reason.
func (b *Breaker) VetoReason(now time.Time) (brain.DecisionReason, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeExpireSoftHaltLocked(now)
	if b.state.State == brain.BreakerInactive {
		return "", false
	}
	return brain.ReasonBreaker, true
}

// IsHardHalted reports whether a flatten command should be published;
// only HARD_HALTED triggers the flatten-intent side effect.
func (b *Breaker) IsHardHalted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.State == brain.BreakerHardHalted
}
