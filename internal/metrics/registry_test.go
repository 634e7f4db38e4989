package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aristath/titan-brain/internal/brain"
	"github.com/aristath/titan-brain/internal/metrics"
)

func TestSnapshot_AggregatesPerPhaseCounters(t *testing.T) {
	r := metrics.New()
	r.IncSubmitted(brain.PhaseP1)
	r.IncSubmitted(brain.PhaseP1)
	r.IncApproved(brain.PhaseP1)
	r.IncVetoed(brain.PhaseP1, brain.ReasonWeightZero)
	r.ObserveProcessingMS(brain.PhaseP1, 10)
	r.ObserveProcessingMS(brain.PhaseP1, 20)

	snap := r.Snapshot()
	p1 := snap.Phases[brain.PhaseP1]
	require.Equal(t, int64(2), p1.Submitted)
	require.Equal(t, int64(1), p1.Approved)
	require.Equal(t, int64(1), p1.VetoedByReason[brain.ReasonWeightZero])
	require.InDelta(t, 15, p1.AvgProcessingMS, 1e-9)
}

func TestRecordSweepAttempt_TalliesOnlySuccessAmount(t *testing.T) {
	r := metrics.New()
	r.RecordSweepAttempt(false, 0)
	r.RecordSweepAttempt(true, 400)

	snap := r.Snapshot()
	require.Equal(t, int64(2), snap.SweepsAttempted)
	require.Equal(t, int64(1), snap.SweepsSucceeded)
	require.InDelta(t, 400, snap.TotalSweptUSD, 1e-9)
}
