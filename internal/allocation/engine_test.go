package allocation_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/titan-brain/internal/allocation"
	"github.com/aristath/titan-brain/internal/brain"
)

func defaultParams() allocation.Params {
	return allocation.Params{StartP2: 1500, FullP2: 5000, StartP3: 25000}
}

func TestCompute_MicroTier(t *testing.T) {
	e := allocation.New(zerolog.Nop())
	v := e.Compute(800, defaultParams())
	assert.Equal(t, brain.TierMicro, v.Tier)
	assert.Equal(t, 1.0, v.W1)
	assert.Equal(t, 0.0, v.W2)
	assert.Equal(t, 0.0, v.W3)
	assert.Equal(t, 20.0, v.MaxLeverage)
}

func TestCompute_BoundaryAtStartP2(t *testing.T) {
	e := allocation.New(zerolog.Nop())
	v := e.Compute(1500, defaultParams())
	assert.Equal(t, brain.TierSmall, v.Tier)
	assert.InDelta(t, 0.8, v.W1, 1e-9)
	assert.InDelta(t, 0.2, v.W2, 1e-9)
	assert.InDelta(t, 0.0, v.W3, 1e-9)
}

func TestCompute_BoundaryAtFullP2(t *testing.T) {
	e := allocation.New(zerolog.Nop())
	v := e.Compute(5000, defaultParams())
	assert.Equal(t, brain.TierMedium, v.Tier)
	assert.InDelta(t, 0.2, v.W1, 1e-9)
	assert.InDelta(t, 0.8, v.W2, 1e-9)
}

func TestCompute_WeightsAlwaysSumToOne(t *testing.T) {
	e := allocation.New(zerolog.Nop())
	for _, equity := range []float64{100, 1500, 3000, 5000, 10000, 25000, 50000, 60000, 1_000_000} {
		v := e.Compute(equity, defaultParams())
		sum := v.W1 + v.W2 + v.W3
		assert.InDelta(t, 1.0, sum, 1e-9, "equity=%v", equity)
		for _, w := range []float64{v.W1, v.W2, v.W3} {
			assert.GreaterOrEqual(t, w, 0.0)
			assert.LessOrEqual(t, w, 1.0)
		}
	}
}

func TestCompute_InstitutionalTier(t *testing.T) {
	e := allocation.New(zerolog.Nop())
	v := e.Compute(50000, defaultParams())
	assert.Equal(t, brain.TierInstitutional, v.Tier)
	assert.InDelta(t, 0.1, v.W1, 1e-9)
	assert.InDelta(t, 0.4, v.W2, 1e-9)
	assert.InDelta(t, 0.5, v.W3, 1e-9)
	assert.Equal(t, 2.0, v.MaxLeverage)
}

func TestResolve_ManualOverrideTakesPrecedence(t *testing.T) {
	e := allocation.New(zerolog.Nop())
	manual := &allocation.ManualOverride{W1: 0.5, W2: 0.3, W3: 0.2}
	effective, computed, err := e.Resolve(800, defaultParams(), manual)
	require.NoError(t, err)
	assert.True(t, effective.Manual)
	assert.Equal(t, 0.5, effective.W1)
	assert.Equal(t, brain.TierMicro, computed.Tier, "diagnostic computed vector still reflects the tier")
	assert.Equal(t, 1.0, computed.W1)
}

func TestResolve_InvalidManualOverrideRejected(t *testing.T) {
	e := allocation.New(zerolog.Nop())
	manual := &allocation.ManualOverride{W1: 0.5, W2: 0.3, W3: 0.3}
	_, _, err := e.Resolve(800, defaultParams(), manual)
	require.Error(t, err)
}
