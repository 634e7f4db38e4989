// Package arbitrator composes the Config Registry, Allocation Engine,
// Performance Tracker, Risk Guardian, and Circuit Breaker into the
// 8-step intent pipeline that turns a signal into an admitted or
// vetoed trading decision.
//
// Pipeline shape grounded on
// internal/modules/trading/safety_service.go's ValidateTrade: a single
// ordered function returning the first binding verdict, composing the
// same sub-checks that package itself implements ad-hoc.
package arbitrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/titan-brain/internal/allocation"
	"github.com/aristath/titan-brain/internal/brain"
	"github.com/aristath/titan-brain/internal/breaker"
	"github.com/aristath/titan-brain/internal/configregistry"
	"github.com/aristath/titan-brain/internal/performance"
	"github.com/aristath/titan-brain/internal/risk"
)

// EquitySource reports the current total equity used for tiering and
// the equity-check ceiling.
type EquitySource interface {
	CurrentEquity() float64
}

// RiskStateSource reports the current portfolio risk snapshot.
type RiskStateSource interface {
	CurrentRiskState() brain.RiskState
}

// Publisher emits the outbound commands the arbitrator's pipeline
// produces as side effects. Implemented by internal/bus.
type Publisher interface {
	PublishPlaceOrder(ctx context.Context, intent brain.Intent, decision brain.Decision) error
}

// Metrics records the per-phase counters emitted at the end of the
// pipeline. Implemented by internal/metrics.
type Metrics interface {
	IncSubmitted(phase brain.PhaseID)
	IncApproved(phase brain.PhaseID)
	IncVetoed(phase brain.PhaseID, reason brain.DecisionReason)
	IncDuplicate(phase brain.PhaseID)
	ObserveProcessingMS(phase brain.PhaseID, ms float64)
}

// Arbitrator is the composing core.
type Arbitrator struct {
	registry  *configregistry.Registry
	alloc     *allocation.Engine
	perf      *performance.Tracker
	guardian  *risk.Guardian
	brk       *breaker.Breaker
	store     *Repository
	bus       Publisher
	metrics   Metrics
	equity    EquitySource
	riskState RiskStateSource
	log       zerolog.Logger

	phaseMu    sync.Mutex
	phaseLocks map[brain.PhaseID]*sync.Mutex
}

// New wires the composing core from its already-constructed sub-engines.
func New(
	registry *configregistry.Registry,
	alloc *allocation.Engine,
	perf *performance.Tracker,
	guardian *risk.Guardian,
	brk *breaker.Breaker,
	store *Repository,
	bus Publisher,
	metrics Metrics,
	equity EquitySource,
	riskState RiskStateSource,
	log zerolog.Logger,
) *Arbitrator {
	return &Arbitrator{
		registry: registry, alloc: alloc, perf: perf, guardian: guardian, brk: brk,
		store: store, bus: bus, metrics: metrics, equity: equity, riskState: riskState,
		log:        log.With().Str("component", "arbitrator").Logger(),
		phaseLocks: make(map[brain.PhaseID]*sync.Mutex),
	}
}

func (a *Arbitrator) lockForPhase(phase brain.PhaseID) *sync.Mutex {
	a.phaseMu.Lock()
	defer a.phaseMu.Unlock()
	mu, ok := a.phaseLocks[phase]
	if !ok {
		mu = &sync.Mutex{}
		a.phaseLocks[phase] = mu
	}
	return mu
}

// Process runs the 8-step pipeline for one intent. A second Process call
// with the same SignalID returns the original Decision unchanged,
// byte-identical, with no further side effects.
func (a *Arbitrator) Process(ctx context.Context, intent brain.Intent) (brain.Decision, error) {
	start := time.Now()

	existing, err := a.store.Get(intent.SignalID)
	if err != nil {
		return brain.Decision{}, fmt.Errorf("dedup lookup for %s: %w", intent.SignalID, err)
	}
	if existing != nil {
		a.metrics.IncDuplicate(intent.PhaseID)
		return *existing, nil
	}

	a.metrics.IncSubmitted(intent.PhaseID)

	deadlineMS, err := a.registry.GetFloat("arbitrator.intentDeadlineMS")
	if err != nil || deadlineMS <= 0 {
		deadlineMS = 1000
	}
	dctx, cancel := context.WithTimeout(ctx, time.Duration(deadlineMS)*time.Millisecond)
	defer cancel()

	decision := a.evaluate(dctx, intent, start)

	if err := a.store.Save(decision); err != nil {
		return brain.Decision{}, fmt.Errorf("persist decision for %s: %w", intent.SignalID, err)
	}

	if decision.Approved && a.bus != nil {
		if err := a.bus.PublishPlaceOrder(ctx, intent, decision); err != nil {
			a.log.Error().Err(err).Str("signal_id", intent.SignalID).Msg("failed to publish place-order command")
		}
	}

	if decision.Approved {
		a.metrics.IncApproved(intent.PhaseID)
	} else {
		a.metrics.IncVetoed(intent.PhaseID, decision.Reason)
	}
	a.metrics.ObserveProcessingMS(intent.PhaseID, decision.ProcessingTimeMS)

	return decision, nil
}

func (a *Arbitrator) veto(intent brain.Intent, reason brain.DecisionReason, start time.Time) brain.Decision {
	return brain.Decision{
		SignalID:           intent.SignalID,
		PhaseID:            intent.PhaseID,
		Approved:           false,
		RequestedNotional:  intent.RequestedNotionalUSD,
		AuthorizedNotional: 0,
		Reason:             reason,
		ProcessingTimeMS:   float64(time.Since(start).Microseconds()) / 1000,
		TDecided:           time.Now().UnixMilli(),
	}
}

// evaluate is steps 2-6 of the pipeline: a straight-line function with a
// single deadline check at each suspension point, rather than a
// coroutine-style async chain.
func (a *Arbitrator) evaluate(ctx context.Context, intent brain.Intent, start time.Time) brain.Decision {
	if ctx.Err() != nil {
		return a.veto(intent, brain.ReasonTimeout, start)
	}

	// 2. Breaker check.
	if reason, halted := a.brk.VetoReason(time.Now()); halted {
		return a.veto(intent, reason, start)
	}

	// 3. Allocation weight.
	equity := a.equity.CurrentEquity()
	allocParams, err := a.allocationParams()
	if err != nil {
		a.log.Error().Err(err).Msg("failed to resolve allocation params")
		return a.veto(intent, brain.ReasonTransientStore, start)
	}
	manualOverride, err := allocation.ResolveManualOverride(a.registry)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to resolve manual allocation override")
		return a.veto(intent, brain.ReasonTransientStore, start)
	}
	allocVector, _, err := a.alloc.Resolve(equity, allocParams, manualOverride)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to resolve allocation vector")
		return a.veto(intent, brain.ReasonTransientStore, start)
	}
	weight := allocVector.WeightForPhase(intent.PhaseID)
	if weight == 0 {
		d := a.veto(intent, brain.ReasonWeightZero, start)
		d.AllocationSnapshot = allocVector
		return d
	}

	mu := a.lockForPhase(intent.PhaseID)
	mu.Lock()
	defer mu.Unlock()

	if ctx.Err() != nil {
		return a.veto(intent, brain.ReasonTimeout, start)
	}

	// 4. Performance modifier.
	perfParams, err := a.performanceParams()
	if err != nil {
		a.log.Error().Err(err).Msg("failed to resolve performance params")
		return a.veto(intent, brain.ReasonTransientStore, start)
	}
	perfSnap := a.perf.Snapshot(intent.PhaseID, perfParams)
	candidate := intent.RequestedNotionalUSD * perfSnap.Modifier

	// 5. Equity check.
	maxSingleFrac, err := a.registry.GetFloat("arbitrator.maxSinglePositionFrac")
	if err != nil {
		maxSingleFrac = 1.0
	}
	ceiling := equity * weight * maxSingleFrac
	if candidate > ceiling {
		candidate = ceiling
	}

	minFloor, _ := a.registry.GetFloat("risk.minPositionFloorUSD")
	if candidate < minFloor {
		d := a.veto(intent, brain.ReasonInsufficientEquity, start)
		d.AllocationSnapshot = allocVector
		d.PerformanceSnapshot = perfSnap
		return d
	}

	// 6. Risk guardian.
	riskParams, err := a.riskParams()
	if err != nil {
		a.log.Error().Err(err).Msg("failed to resolve risk params")
		return a.veto(intent, brain.ReasonTransientStore, start)
	}
	outcome := a.guardian.Evaluate(risk.Candidate{
		Phase:             intent.PhaseID,
		Symbol:            intent.Symbol,
		Side:              intent.Side,
		CandidateNotional: candidate,
		TierMaxLeverage:   allocVector.MaxLeverage,
		Equity:            equity,
	}, a.riskState.CurrentRiskState(), riskParams)

	approved := outcome.Reason == brain.ReasonApproved || outcome.Reason == brain.ReasonApprovedReduced
	return brain.Decision{
		SignalID:            intent.SignalID,
		PhaseID:             intent.PhaseID,
		Approved:            approved,
		RequestedNotional:   intent.RequestedNotionalUSD,
		AuthorizedNotional:  outcome.ApprovedNotional,
		Reason:              outcome.Reason,
		AllocationSnapshot:  allocVector,
		PerformanceSnapshot: perfSnap,
		RiskSnapshot:        outcome.Snapshot,
		ProcessingTimeMS:    float64(time.Since(start).Microseconds()) / 1000,
		TDecided:            time.Now().UnixMilli(),
	}
}

func (a *Arbitrator) allocationParams() (allocation.Params, error) {
	startP2, err := a.registry.GetFloat("allocation.startP2")
	if err != nil {
		return allocation.Params{}, err
	}
	fullP2, err := a.registry.GetFloat("allocation.fullP2")
	if err != nil {
		return allocation.Params{}, err
	}
	startP3, err := a.registry.GetFloat("allocation.startP3")
	if err != nil {
		return allocation.Params{}, err
	}
	return allocation.Params{StartP2: startP2, FullP2: fullP2, StartP3: startP3}, nil
}

func (a *Arbitrator) performanceParams() (performance.Params, error) {
	windowDays, err := a.registry.GetFloat("performance.windowDays")
	if err != nil {
		return performance.Params{}, err
	}
	minTradeCount, err := a.registry.GetFloat("performance.minTradeCount")
	if err != nil {
		return performance.Params{}, err
	}
	malusThreshold, _ := a.registry.GetFloat("performance.malusThreshold")
	malusMultiplier, _ := a.registry.GetFloat("performance.malusMultiplier")
	bonusThreshold, _ := a.registry.GetFloat("performance.bonusThreshold")
	bonusMultiplier, _ := a.registry.GetFloat("performance.bonusMultiplier")
	return performance.Params{
		WindowDays: windowDays, MinTradeCount: int(minTradeCount),
		MalusThreshold: malusThreshold, MalusMultiplier: malusMultiplier,
		BonusThreshold: bonusThreshold, BonusMultiplier: bonusMultiplier,
	}, nil
}

func (a *Arbitrator) riskParams() (risk.Params, error) {
	alphaVeto, err := a.registry.GetFloat("risk.alphaVetoThreshold")
	if err != nil {
		return risk.Params{}, err
	}
	maxCorr, _ := a.registry.GetFloat("risk.maxCorrelation")
	corrPenalty, _ := a.registry.GetFloat("risk.correlationPenalty")
	minFloor, _ := a.registry.GetFloat("risk.minPositionFloorUSD")
	return risk.Params{
		AlphaVetoThreshold: alphaVeto,
		MaxCorrelation:     maxCorr,
		CorrelationPenalty: corrPenalty,
		MinPositionFloor:   minFloor,
	}, nil
}
