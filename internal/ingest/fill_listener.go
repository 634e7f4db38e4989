// Package ingest wires inbound fill events (titan.evt.exec.fill.v1.*) into
// the performance tracker, the equity figure, and the circuit breaker —
// the three components that are fill-driven but have no bus-facing entry
// point of their own.
package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/titan-brain/internal/brain"
	"github.com/aristath/titan-brain/internal/breaker"
	"github.com/aristath/titan-brain/internal/bus"
	"github.com/aristath/titan-brain/internal/equity"
	"github.com/aristath/titan-brain/internal/performance"
)

// PhaseLookup resolves which phase a signal_id belongs to, via the
// arbitrator's persisted Decision — fill events don't carry phase_id
// themselves.
type PhaseLookup interface {
	Get(signalID string) (*brain.Decision, error)
}

// BreakerParams resolves the breaker thresholds needed on every fill.
type BreakerParams func() breaker.Params

// PerformanceParams resolves the tracker window/threshold parameters.
type PerformanceParams func() performance.Params

// FillListener subscribes to every fill event on the EVT stream and
// drives the downstream updates a terminal fill triggers.
type FillListener struct {
	bus        *bus.Bus
	tracker    *performance.Tracker
	perfRepo   *performance.Repository
	equity     *equity.Tracker
	breaker    *breaker.Breaker
	decisions  PhaseLookup
	perfParams PerformanceParams
	brkParams  BreakerParams

	log zerolog.Logger
}

// New wires a FillListener to its collaborators.
func New(b *bus.Bus, tracker *performance.Tracker, perfRepo *performance.Repository, eq *equity.Tracker, brk *breaker.Breaker, decisions PhaseLookup, perfParams PerformanceParams, brkParams BreakerParams, log zerolog.Logger) *FillListener {
	return &FillListener{
		bus:        b,
		tracker:    tracker,
		perfRepo:   perfRepo,
		equity:     eq,
		breaker:    brk,
		decisions:  decisions,
		perfParams: perfParams,
		brkParams:  brkParams,
		log:        log.With().Str("component", "fill-listener").Logger(),
	}
}

type fillPayload struct {
	SignalID      string  `json:"signal_id"`
	Venue         string  `json:"venue"`
	Symbol        string  `json:"symbol"`
	FilledNotional float64 `json:"filled_notional"`
	FillPrice     float64 `json:"fill_price"`
	RealizedPnL   float64 `json:"realized_pnl"`
	TFill         int64   `json:"t_fill"`
}

// Run blocks, consuming fill events from the EVT stream until ctx is
// cancelled. Callers run it in its own goroutine.
func (f *FillListener) Run(ctx context.Context) {
	messages, unsubscribe := f.bus.SubscribeStream(bus.StreamEVT, "fill-listener")
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if !isFillSubject(msg.Subject) {
				continue
			}
			f.handle(msg.Envelope)
		}
	}
}

func isFillSubject(subject string) bool {
	const prefix = "titan.evt.exec.fill."
	return len(subject) >= len(prefix) && subject[:len(prefix)] == prefix
}

func (f *FillListener) handle(env bus.Envelope) {
	var payload fillPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		f.log.Warn().Err(err).Str("id", env.ID).Msg("dropping malformed fill envelope")
		return
	}

	decision, err := f.decisions.Get(payload.SignalID)
	if err != nil {
		f.log.Warn().Err(err).Str("signal_id", payload.SignalID).Msg("failed to resolve phase for fill")
		return
	}
	if decision == nil {
		f.log.Warn().Str("signal_id", payload.SignalID).Msg("fill for unknown signal_id, phase cannot be attributed")
		return
	}

	// At most one terminal fill per signal_id is counted toward PnL. The
	// phase_trades insert is the dedup authority, not an in-memory set —
	// it must survive a restart, since a replayed fill arrives exactly
	// the way the first delivery did.
	inserted, err := f.perfRepo.RecordFill(decision.PhaseID, payload.SignalID, payload.RealizedPnL, payload.TFill)
	if err != nil {
		f.log.Warn().Err(err).Str("signal_id", payload.SignalID).Msg("failed to persist phase trade")
		return
	}
	if !inserted {
		f.log.Debug().Str("signal_id", payload.SignalID).Msg("duplicate fill suppressed")
		return
	}

	fill := brain.FillEvent{
		SignalID:       payload.SignalID,
		Venue:          payload.Venue,
		Symbol:         payload.Symbol,
		FilledNotional: payload.FilledNotional,
		FillPrice:      payload.FillPrice,
		RealizedPnLUSD: payload.RealizedPnL,
		TFill:          payload.TFill,
	}

	perfParams := f.perfParams()
	f.tracker.RecordFill(decision.PhaseID, fill, perfParams)

	newEquity := f.equity.ApplyPnL(payload.RealizedPnL)
	f.breaker.EvaluateEquity(newEquity, f.equity.DailyDrawdownFrac(), f.brkParams(), time.Now())
	if f.breaker.IsHardHalted() {
		f.publishHalt(decision.PhaseID)
	}
}

func (f *FillListener) publishHalt(phase brain.PhaseID) {
	raw, err := json.Marshal(map[string]string{"scope": "all", "reason": "hard_halt", "triggering_phase": string(phase)})
	if err != nil {
		f.log.Error().Err(err).Msg("failed to marshal halt command payload")
		return
	}
	env := bus.Envelope{ID: uuid.NewString(), Version: "v1", Type: "sys.halt", Producer: "titan-brain", Payload: raw}
	if err := f.bus.Publish(context.Background(), bus.HaltSubject("all"), env); err != nil {
		f.log.Error().Err(err).Msg("failed to publish halt command")
	}
}
