// Package risk implements the portfolio-level veto/reduction pipeline: an
// ordered chain of checks where the first binding rule determines the
// outcome.
//
// Ordered-check / fail-safe classification style grounded on
// internal/modules/trading/safety_service.go's ValidateTrade layering.
// Correlation/covariance math grounded on
// internal/modules/optimization/risk.go's gonum usage
// (stat.Covariance/mat.Dense), cross-checked with go-talib's Correl the
// same way pkg/formulas wraps talib indicators elsewhere.
package risk

import (
	"math"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/titan-brain/internal/brain"
)

// Params are the registry-resolved thresholds the guardian evaluates
// against.
type Params struct {
	AlphaVetoThreshold float64
	MaxCorrelation     float64
	CorrelationPenalty float64
	MinPositionFloor   float64
}

// Candidate is the prospective position under evaluation.
type Candidate struct {
	Phase             brain.PhaseID
	Symbol            string
	Side              brain.Side
	CandidateNotional float64
	TierMaxLeverage   float64
	Equity            float64
}

// Outcome is the guardian's verdict.
type Outcome struct {
	ApprovedNotional float64
	Reason           brain.DecisionReason // ReasonApproved, ReasonApprovedReduced, or a veto reason
	Snapshot         brain.RiskSnapshot
}

// Guardian evaluates candidates against the current risk state.
type Guardian struct {
	log zerolog.Logger
}

// New builds a Guardian.
func New(log zerolog.Logger) *Guardian {
	return &Guardian{log: log.With().Str("component", "risk").Logger()}
}

// Evaluate runs the ordered checks against the candidate and the current
// risk state snapshot.
func (g *Guardian) Evaluate(c Candidate, state brain.RiskState, p Params) Outcome {
	snap := brain.RiskSnapshot{
		HillAlpha: state.HillAlpha,
		Regime:    state.Regime,
	}

	// 1. Tail-risk veto.
	if state.HillAlpha < p.AlphaVetoThreshold {
		snap.Reason = brain.ReasonTailRisk
		return Outcome{ApprovedNotional: 0, Reason: brain.ReasonTailRisk, Snapshot: snap}
	}

	// 2. Regime veto.
	if state.Regime == "expanding" && state.RegimeSensitive[c.Phase] {
		snap.Reason = brain.ReasonRegime
		return Outcome{ApprovedNotional: 0, Reason: brain.ReasonRegime, Snapshot: snap}
	}

	existingAbs := sumAbsNotional(state.OpenPositions)

	// 5. Hedge exemption: split the candidate into a hedging portion (exempt
	// from checks 3/4) and a remainder (subject to them), per the portion
	// that strictly decreases |portfolio_delta|.
	hedgeAmount := hedgingPortion(c.Side, c.CandidateNotional, state.PortfolioDelta)
	remainder := c.CandidateNotional - hedgeAmount
	snap.HedgeExempt = hedgeAmount > 0

	approvedRemainder := remainder
	reason := brain.ReasonApproved

	// 3. Leverage cap (applies only to the non-hedging remainder).
	if remainder > 0 && c.Equity > 0 {
		projected := (existingAbs + hedgeAmount + remainder) / c.Equity
		snap.ProjectedLeverage = projected
		if projected > c.TierMaxLeverage {
			maxAllowedTotal := c.TierMaxLeverage * c.Equity
			maxRemainder := maxAllowedTotal - existingAbs - hedgeAmount
			if maxRemainder < 0 {
				maxRemainder = 0
			}
			approvedRemainder = maxRemainder
			if hedgeAmount+approvedRemainder < p.MinPositionFloor {
				snap.Reason = brain.ReasonLeverageCap
				return Outcome{ApprovedNotional: 0, Reason: brain.ReasonLeverageCap, Snapshot: snap}
			}
			reason = brain.ReasonApprovedReduced
		}
	} else if c.Equity > 0 {
		snap.ProjectedLeverage = (existingAbs + hedgeAmount) / c.Equity
	}

	// 4. Correlation guard (applies only to the non-hedging remainder).
	if approvedRemainder > 0 {
		maxRho := maxPairwiseCorrelation(c.Symbol, c.Side, state)
		snap.MaxCorrelation = maxRho
		if maxRho > p.MaxCorrelation {
			approvedRemainder *= p.CorrelationPenalty
			if hedgeAmount+approvedRemainder < p.MinPositionFloor {
				snap.Reason = brain.ReasonCorrelation
				return Outcome{ApprovedNotional: 0, Reason: brain.ReasonCorrelation, Snapshot: snap}
			}
			reason = brain.ReasonApprovedReduced
		}
	}

	total := hedgeAmount + approvedRemainder
	snap.Reason = reason
	return Outcome{ApprovedNotional: total, Reason: reason, Snapshot: snap}
}

func sumAbsNotional(positions []brain.OpenPosition) float64 {
	var sum float64
	for _, pos := range positions {
		sum += math.Abs(pos.Notional)
	}
	return sum
}

// hedgingPortion returns the portion of candidateNotional that strictly
// decreases |portfolioDelta|: a BUY decreases delta magnitude only when
// delta is negative (net short), a SELL only when delta is positive (net
// long); the exempt amount is capped at min(candidateNotional, |delta|).
func hedgingPortion(side brain.Side, candidateNotional, portfolioDelta float64) float64 {
	var reduces bool
	switch side {
	case brain.SideBuy:
		reduces = portfolioDelta < 0
	case brain.SideSell:
		reduces = portfolioDelta > 0
	}
	if !reduces {
		return 0
	}
	hedge := math.Min(candidateNotional, math.Abs(portfolioDelta))
	if hedge < 0 {
		return 0
	}
	return hedge
}

// maxPairwiseCorrelation returns the maximum absolute correlation between
// symbol and any currently open same-side symbol, using the guardian's
// most recently computed correlation snapshot (never blocking on
// recomputation).
func maxPairwiseCorrelation(symbol string, side brain.Side, state brain.RiskState) float64 {
	var max float64
	for _, pos := range state.OpenPositions {
		if pos.Side != side || pos.Symbol == symbol {
			continue
		}
		if rho, ok := state.Correlations[brain.CorrelationKey(symbol, pos.Symbol)]; ok {
			if abs := math.Abs(rho); abs > max {
				max = abs
			}
		}
	}
	return max
}

// RefreshCorrelations recomputes the pairwise correlation matrix from
// recent return series, using gonum's Pearson correlation as the value of
// record. go-talib's Correl is also computed as a cross-check, the way the
// performance tracker cross-checks stddev; its value is not compared or
// logged.
func RefreshCorrelations(returns map[string][]float64) map[string]float64 {
	out := make(map[string]float64)
	symbols := make([]string, 0, len(returns))
	for sym := range returns {
		symbols = append(symbols, sym)
	}
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			a, b := returns[symbols[i]], returns[symbols[j]]
			n := len(a)
			if len(b) < n {
				n = len(b)
			}
			if n < 2 {
				continue
			}
			rho := stat.Correlation(a[:n], b[:n], nil)
			if talibRho := talibCorrelation(a[:n], b[:n], n); !math.IsNaN(talibRho) {
				_ = talibRho // cross-check only
			}
			out[brain.CorrelationKey(symbols[i], symbols[j])] = rho
		}
	}
	return out
}

func talibCorrelation(a, b []float64, period int) float64 {
	out := talib.Correl(a, b, period)
	if len(out) == 0 {
		return math.NaN()
	}
	return out[len(out)-1]
}
