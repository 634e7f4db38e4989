package risk_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/titan-brain/internal/brain"
	"github.com/aristath/titan-brain/internal/risk"
)

func defaultParams() risk.Params {
	return risk.Params{
		AlphaVetoThreshold: 2.0,
		MaxCorrelation:     0.7,
		CorrelationPenalty: 0.5,
		MinPositionFloor:   50,
	}
}

func baseState() brain.RiskState {
	return brain.RiskState{
		HillAlpha:       3.0,
		Regime:          "calm",
		RegimeSensitive: map[brain.PhaseID]bool{brain.PhaseP1: true},
		Correlations:    map[string]float64{},
	}
}

func TestEvaluate_TailRiskVeto(t *testing.T) {
	g := risk.New(zerolog.Nop())
	state := baseState()
	state.HillAlpha = 1.5
	out := g.Evaluate(risk.Candidate{
		Phase: brain.PhaseP1, Symbol: "BTC", Side: brain.SideBuy,
		CandidateNotional: 1000, TierMaxLeverage: 10, Equity: 10000,
	}, state, defaultParams())
	assert.Equal(t, brain.ReasonTailRisk, out.Reason)
	assert.Equal(t, 0.0, out.ApprovedNotional)
}

func TestEvaluate_RegimeVetoOnlyWhenPhaseSensitive(t *testing.T) {
	g := risk.New(zerolog.Nop())
	state := baseState()
	state.Regime = "expanding"
	out := g.Evaluate(risk.Candidate{
		Phase: brain.PhaseP1, Symbol: "BTC", Side: brain.SideBuy,
		CandidateNotional: 1000, TierMaxLeverage: 10, Equity: 10000,
	}, state, defaultParams())
	assert.Equal(t, brain.ReasonRegime, out.Reason)

	out2 := g.Evaluate(risk.Candidate{
		Phase: brain.PhaseP2, Symbol: "BTC", Side: brain.SideBuy,
		CandidateNotional: 1000, TierMaxLeverage: 10, Equity: 10000,
	}, state, defaultParams())
	assert.NotEqual(t, brain.ReasonRegime, out2.Reason, "p2 is not flagged regime-sensitive in this fixture")
}

func TestEvaluate_ApprovedUnderCap(t *testing.T) {
	g := risk.New(zerolog.Nop())
	out := g.Evaluate(risk.Candidate{
		Phase: brain.PhaseP2, Symbol: "BTC", Side: brain.SideBuy,
		CandidateNotional: 1000, TierMaxLeverage: 10, Equity: 10000,
	}, baseState(), defaultParams())
	assert.Equal(t, brain.ReasonApproved, out.Reason)
	assert.Equal(t, 1000.0, out.ApprovedNotional)
}

func TestEvaluate_LeverageCapReduces(t *testing.T) {
	g := risk.New(zerolog.Nop())
	state := baseState()
	state.OpenPositions = []brain.OpenPosition{{Symbol: "ETH", Side: brain.SideBuy, Notional: 9000}}
	out := g.Evaluate(risk.Candidate{
		Phase: brain.PhaseP2, Symbol: "BTC", Side: brain.SideBuy,
		CandidateNotional: 5000, TierMaxLeverage: 1.0, Equity: 10000,
	}, state, defaultParams())
	assert.Equal(t, brain.ReasonApprovedReduced, out.Reason)
	assert.InDelta(t, 1000, out.ApprovedNotional, 1e-9, "capped to exactly 1x leverage: 10000 - 9000 existing")
}

func TestEvaluate_LeverageCapVetoesBelowFloor(t *testing.T) {
	g := risk.New(zerolog.Nop())
	state := baseState()
	state.OpenPositions = []brain.OpenPosition{{Symbol: "ETH", Side: brain.SideBuy, Notional: 9990}}
	out := g.Evaluate(risk.Candidate{
		Phase: brain.PhaseP2, Symbol: "BTC", Side: brain.SideBuy,
		CandidateNotional: 5000, TierMaxLeverage: 1.0, Equity: 10000,
	}, state, defaultParams())
	assert.Equal(t, brain.ReasonLeverageCap, out.Reason)
	assert.Equal(t, 0.0, out.ApprovedNotional)
}

func TestEvaluate_CorrelationPenaltyApplied(t *testing.T) {
	g := risk.New(zerolog.Nop())
	state := baseState()
	state.OpenPositions = []brain.OpenPosition{{Symbol: "ETH", Side: brain.SideBuy, Notional: 100}}
	state.Correlations[brain.CorrelationKey("BTC", "ETH")] = 0.9
	out := g.Evaluate(risk.Candidate{
		Phase: brain.PhaseP2, Symbol: "BTC", Side: brain.SideBuy,
		CandidateNotional: 1000, TierMaxLeverage: 10, Equity: 10000,
	}, state, defaultParams())
	assert.Equal(t, brain.ReasonApprovedReduced, out.Reason)
	assert.InDelta(t, 500, out.ApprovedNotional, 1e-9)
}

func TestEvaluate_CorrelationAtExactMaxNotPenalized(t *testing.T) {
	g := risk.New(zerolog.Nop())
	state := baseState()
	state.OpenPositions = []brain.OpenPosition{{Symbol: "ETH", Side: brain.SideBuy, Notional: 100}}
	state.Correlations[brain.CorrelationKey("BTC", "ETH")] = 0.7
	out := g.Evaluate(risk.Candidate{
		Phase: brain.PhaseP2, Symbol: "BTC", Side: brain.SideBuy,
		CandidateNotional: 1000, TierMaxLeverage: 10, Equity: 10000,
	}, state, defaultParams())
	assert.Equal(t, brain.ReasonApproved, out.Reason, "exactly at max_correlation must not be penalized (strict >)")
	assert.Equal(t, 1000.0, out.ApprovedNotional)
}

func TestEvaluate_HedgeExemptFromLeverageAndCorrelation(t *testing.T) {
	g := risk.New(zerolog.Nop())
	state := baseState()
	state.PortfolioDelta = 5000 // net long
	state.OpenPositions = []brain.OpenPosition{{Symbol: "ETH", Side: brain.SideBuy, Notional: 9990}}
	state.Correlations[brain.CorrelationKey("BTC", "ETH")] = 0.99
	out := g.Evaluate(risk.Candidate{
		Phase: brain.PhaseP2, Symbol: "BTC", Side: brain.SideSell, // sells reduce the long delta
		CandidateNotional: 3000, TierMaxLeverage: 1.0, Equity: 10000,
	}, state, defaultParams())
	assert.Equal(t, brain.ReasonApproved, out.Reason, "fully hedging sell bypasses leverage/correlation checks")
	assert.Equal(t, 3000.0, out.ApprovedNotional)
	assert.True(t, out.Snapshot.HedgeExempt)
}

func TestRefreshCorrelations_SymmetricAndBounded(t *testing.T) {
	returns := map[string][]float64{
		"BTC": {1, 2, 3, 4, 5, 4, 3, 2, 1, 2},
		"ETH": {1, 2, 3, 4, 5, 4, 3, 2, 1, 2},
		"XRP": {5, 1, 4, 2, 3, 8, 2, 9, 0, 1},
	}
	corr := risk.RefreshCorrelations(returns)
	rho := corr[brain.CorrelationKey("BTC", "ETH")]
	assert.InDelta(t, 1.0, rho, 1e-6, "identical series correlate perfectly")
	for _, v := range corr {
		assert.GreaterOrEqual(t, v, -1.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}
