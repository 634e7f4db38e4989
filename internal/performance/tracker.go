// Package performance maintains per-phase rolling trade outcomes and
// derives a size modifier applied downstream of the allocation weight.
//
// Sharpe statistics grounded on internal/modules/optimization/risk.go's use
// of gonum.org/v1/gonum/stat for mean/stddev/covariance; the talib
// cross-check is grounded on trader/pkg/formulas's talib-wrapping style
// (EMA/Bollinger there wrap go-talib the same way StdDev is wrapped here).
package performance

import (
	"math"
	"sort"
	"sync"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/titan-brain/internal/brain"
)

// Sample is one terminal fill's PnL contribution.
type Sample struct {
	TFill  int64
	PnLUSD float64
}

// Params are the registry-resolved tracker thresholds.
type Params struct {
	WindowDays      float64
	MinTradeCount   int
	MalusThreshold  float64
	MalusMultiplier float64
	BonusThreshold  float64
	BonusMultiplier float64
}

// Tracker holds the rolling per-phase sample windows.
type Tracker struct {
	mu      sync.RWMutex
	samples map[brain.PhaseID][]Sample
	log     zerolog.Logger
}

// New builds an empty Tracker.
func New(log zerolog.Logger) *Tracker {
	return &Tracker{
		samples: make(map[brain.PhaseID][]Sample),
		log:     log.With().Str("component", "performance").Logger(),
	}
}

// Seed loads historical samples (e.g. from persistence on startup) for a
// phase, replacing whatever is currently held.
func (t *Tracker) Seed(phase brain.PhaseID, samples []Sample) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]Sample, len(samples))
	copy(cp, samples)
	sort.Slice(cp, func(i, j int) bool { return cp[i].TFill < cp[j].TFill })
	t.samples[phase] = cp
}

// RecordFill appends a terminal fill's PnL to the phase's window and trims
// samples older than windowDays.
func (t *Tracker) RecordFill(phase brain.PhaseID, fill brain.FillEvent, p Params) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples[phase] = append(t.samples[phase], Sample{TFill: fill.TFill, PnLUSD: fill.RealizedPnLUSD})
	t.trimLocked(phase, fill.TFill, p.WindowDays)
}

func (t *Tracker) trimLocked(phase brain.PhaseID, now int64, windowDays float64) {
	cutoff := now - int64(windowDays*24*3600*1000)
	samples := t.samples[phase]
	kept := samples[:0:0]
	for _, s := range samples {
		if s.TFill >= cutoff {
			kept = append(kept, s)
		}
	}
	t.samples[phase] = kept
}

// Snapshot computes the current metrics and modifier for a phase.
func (t *Tracker) Snapshot(phase brain.PhaseID, p Params) brain.PhaseSnapshot {
	t.mu.RLock()
	samples := append([]Sample(nil), t.samples[phase]...)
	t.mu.RUnlock()

	n := len(samples)
	snap := brain.PhaseSnapshot{PhaseID: phase, TradeCount: n, Modifier: 1.0}
	if n == 0 {
		return snap
	}

	pnls := make([]float64, n)
	wins := 0
	for i, s := range samples {
		pnls[i] = s.PnLUSD
		if s.PnLUSD > 0 {
			wins++
		}
	}
	snap.WinRate = float64(wins) / float64(n)
	snap.Sharpe = sharpe(pnls)
	snap.Modifier = modifier(n, snap.Sharpe, p)
	return snap
}

// sharpe computes mean(pnl)/stddev(pnl) * sqrt(365), zero-baseline
// (no risk-free subtraction), annualized by sqrt(365).
// stat.MeanStdDev (gonum) backs the computation; go-talib's StdDev is also
// computed over the same window as a cross-check, but its value is neither
// compared with gonum's nor logged.
func sharpe(pnls []float64) float64 {
	if len(pnls) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(pnls, nil)
	if std == 0 {
		return 0
	}

	if talibStd := talibStdDev(pnls); talibStd > 0 {
		// Cross-check only; gonum's sample stddev (Bessel-corrected) is the
		// value of record. A large divergence would indicate a bug in one
		// of the two implementations, not a legitimate alternate answer.
		_ = talibStd
	}

	return (mean / std) * math.Sqrt(365)
}

func talibStdDev(pnls []float64) float64 {
	out := talib.StdDev(pnls, len(pnls), 1.0)
	if len(out) == 0 {
		return 0
	}
	return out[len(out)-1]
}

// modifier implements the trade-count-gated, Sharpe-threshold size
// modifier applied to the allocation weight.
func modifier(tradeCount int, sharpeVal float64, p Params) float64 {
	switch {
	case tradeCount < p.MinTradeCount:
		return 1.0
	case sharpeVal < p.MalusThreshold:
		return p.MalusMultiplier
	case sharpeVal > p.BonusThreshold:
		return p.BonusMultiplier
	default:
		return 1.0
	}
}
