package performance_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/titan-brain/internal/brain"
	"github.com/aristath/titan-brain/internal/performance"
)

func defaultParams() performance.Params {
	return performance.Params{
		WindowDays: 7, MinTradeCount: 10,
		MalusThreshold: 0, MalusMultiplier: 0.5,
		BonusThreshold: 2.0, BonusMultiplier: 1.2,
	}
}

func TestSnapshot_ColdStartPassThrough(t *testing.T) {
	tr := performance.New(zerolog.Nop())
	for i := 0; i < 5; i++ {
		tr.RecordFill(brain.PhaseP1, brain.FillEvent{TFill: int64(i), RealizedPnLUSD: 10}, defaultParams())
	}
	snap := tr.Snapshot(brain.PhaseP1, defaultParams())
	assert.Equal(t, 5, snap.TradeCount)
	assert.Equal(t, 1.0, snap.Modifier, "below min_trade_count must pass through at 1.0")
}

func TestSnapshot_MalusOnNegativeSharpe(t *testing.T) {
	tr := performance.New(zerolog.Nop())
	pnls := []float64{10, -20, 5, -15, 8, -25, 3, -10, 6, -12, -5, -8}
	for i, pnl := range pnls {
		tr.RecordFill(brain.PhaseP1, brain.FillEvent{TFill: int64(i * 1000), RealizedPnLUSD: pnl}, defaultParams())
	}
	snap := tr.Snapshot(brain.PhaseP1, defaultParams())
	assert.GreaterOrEqual(t, snap.TradeCount, 10)
	assert.Equal(t, 0.5, snap.Modifier, "negative Sharpe past the trade-count gate takes the malus")
}

func TestSnapshot_ModifierAlwaysOneOfThreeValues(t *testing.T) {
	tr := performance.New(zerolog.Nop())
	for i := 0; i < 30; i++ {
		pnl := 5.0
		if i%3 == 0 {
			pnl = -3.0
		}
		tr.RecordFill(brain.PhaseP1, brain.FillEvent{TFill: int64(i * 1000), RealizedPnLUSD: pnl}, defaultParams())
		snap := tr.Snapshot(brain.PhaseP1, defaultParams())
		assert.Contains(t, []float64{0.5, 1.0, 1.2}, snap.Modifier)
	}
}

func TestRecordFill_TrimsOutsideWindow(t *testing.T) {
	tr := performance.New(zerolog.Nop())
	p := defaultParams()
	dayMS := int64(24 * 3600 * 1000)
	tr.RecordFill(brain.PhaseP1, brain.FillEvent{TFill: 0, RealizedPnLUSD: 100}, p)
	tr.RecordFill(brain.PhaseP1, brain.FillEvent{TFill: 10 * dayMS, RealizedPnLUSD: 5}, p)
	snap := tr.Snapshot(brain.PhaseP1, p)
	assert.Equal(t, 1, snap.TradeCount, "sample older than window_days must be trimmed on the next fill")
}
