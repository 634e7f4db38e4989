package breaker_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/titan-brain/internal/brain"
	"github.com/aristath/titan-brain/internal/breaker"
)

type recordingSink struct{ events []breaker.TransitionEvent }

func (s *recordingSink) RecordTransition(ev breaker.TransitionEvent) error {
	s.events = append(s.events, ev)
	return nil
}

func defaultParams() breaker.Params {
	return breaker.Params{
		ConsecutiveLossLimit:      3,
		ConsecutiveLossWindowSecs: 3600,
		SoftCooldownSecs:          1800,
		MaxDailyDrawdown:         0.15,
		MinEquityUSD:             150,
	}
}

func TestRecordLoss_TripsSoftHaltAtLimit(t *testing.T) {
	sink := &recordingSink{}
	b := breaker.New(brain.BreakerState{}, sink, zerolog.Nop())
	now := time.Now()

	b.RecordLoss(now.UnixMilli(), defaultParams(), now)
	b.RecordLoss(now.Add(time.Minute).UnixMilli(), defaultParams(), now.Add(time.Minute))
	assert.Equal(t, brain.BreakerInactive, b.Snapshot(now).State)

	b.RecordLoss(now.Add(2*time.Minute).UnixMilli(), defaultParams(), now.Add(2*time.Minute))
	snap := b.Snapshot(now.Add(2 * time.Minute))
	assert.Equal(t, brain.BreakerSoftHalted, snap.State)
	require.Len(t, sink.events, 1)
	assert.Equal(t, brain.BreakerInactive, sink.events[0].Prev)
	assert.Equal(t, brain.BreakerSoftHalted, sink.events[0].Next)
}

func TestSnapshot_AutoExitsSoftHaltAfterCooldown(t *testing.T) {
	sink := &recordingSink{}
	b := breaker.New(brain.BreakerState{}, sink, zerolog.Nop())
	now := time.Now()
	p := defaultParams()
	p.SoftCooldownSecs = 1

	for i := 0; i < 3; i++ {
		b.RecordLoss(now.Add(time.Duration(i)*time.Second).UnixMilli(), p, now.Add(time.Duration(i)*time.Second))
	}
	assert.Equal(t, brain.BreakerSoftHalted, b.Snapshot(now).State)

	later := now.Add(5 * time.Second)
	assert.Equal(t, brain.BreakerInactive, b.Snapshot(later).State, "cooldown of 1s must have elapsed")
}

func TestEvaluateEquity_HardHaltOnDrawdown(t *testing.T) {
	sink := &recordingSink{}
	b := breaker.New(brain.BreakerState{}, sink, zerolog.Nop())
	now := time.Now()
	b.EvaluateEquity(8500, 0.16, defaultParams(), now)
	assert.Equal(t, brain.BreakerHardHalted, b.Snapshot(now).State)
	assert.True(t, b.IsHardHalted())
}

func TestEvaluateEquity_HardHaltOnMinEquity(t *testing.T) {
	sink := &recordingSink{}
	b := breaker.New(brain.BreakerState{}, sink, zerolog.Nop())
	now := time.Now()
	b.EvaluateEquity(100, 0.0, defaultParams(), now)
	assert.Equal(t, brain.BreakerHardHalted, b.Snapshot(now).State)
}

func TestReset_OnlyWayOutOfHardHalt(t *testing.T) {
	sink := &recordingSink{}
	b := breaker.New(brain.BreakerState{}, sink, zerolog.Nop())
	now := time.Now()
	b.EvaluateEquity(100, 0.0, defaultParams(), now)
	require.True(t, b.IsHardHalted())

	// A cooldown-driven Snapshot alone must never clear HARD_HALTED.
	assert.Equal(t, brain.BreakerHardHalted, b.Snapshot(now.Add(time.Hour)).State)

	b.Reset("ops-1", 500, now.Add(time.Hour))
	assert.Equal(t, brain.BreakerInactive, b.Snapshot(now.Add(time.Hour)).State)
}

func TestVetoReason_OnlyWhenNotInactive(t *testing.T) {
	sink := &recordingSink{}
	b := breaker.New(brain.BreakerState{}, sink, zerolog.Nop())
	now := time.Now()
	_, vetoed := b.VetoReason(now)
	assert.False(t, vetoed)

	b.EvaluateEquity(100, 0, defaultParams(), now)
	reason, vetoed := b.VetoReason(now)
	assert.True(t, vetoed)
	assert.Equal(t, brain.ReasonBreaker, reason)
}
