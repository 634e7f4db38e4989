// Package metrics is the process-wide metrics registry — a plain
// in-process counter/gauge struct rather than prometheus/client_golang,
// since nothing else in this codebase pulls that dependency in. The
// package holds no global instance: the composition root builds one
// Registry with New and passes it to the components that record into it.
package metrics

import (
	"sync"

	"github.com/aristath/titan-brain/internal/brain"
)

// Registry accumulates arbitrator, treasury, and breaker counters for the
// GET /status monitoring surface.
type Registry struct {
	mu sync.Mutex

	submitted map[brain.PhaseID]int64
	approved  map[brain.PhaseID]int64
	vetoed    map[brain.PhaseID]map[brain.DecisionReason]int64
	duplicate map[brain.PhaseID]int64

	processingSumMS   map[brain.PhaseID]float64
	processingCount   map[brain.PhaseID]int64

	sweepsAttempted int64
	sweepsSucceeded int64
	sweptUSD        float64

	breakerTransitions int64
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{
		submitted:       make(map[brain.PhaseID]int64),
		approved:        make(map[brain.PhaseID]int64),
		vetoed:          make(map[brain.PhaseID]map[brain.DecisionReason]int64),
		duplicate:       make(map[brain.PhaseID]int64),
		processingSumMS: make(map[brain.PhaseID]float64),
		processingCount: make(map[brain.PhaseID]int64),
	}
}

// IncSubmitted implements arbitrator.Metrics.
func (r *Registry) IncSubmitted(phase brain.PhaseID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted[phase]++
}

// IncApproved implements arbitrator.Metrics.
func (r *Registry) IncApproved(phase brain.PhaseID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approved[phase]++
}

// IncVetoed implements arbitrator.Metrics.
func (r *Registry) IncVetoed(phase brain.PhaseID, reason brain.DecisionReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vetoed[phase] == nil {
		r.vetoed[phase] = make(map[brain.DecisionReason]int64)
	}
	r.vetoed[phase][reason]++
}

// IncDuplicate implements arbitrator.Metrics.
func (r *Registry) IncDuplicate(phase brain.PhaseID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.duplicate[phase]++
}

// ObserveProcessingMS implements arbitrator.Metrics.
func (r *Registry) ObserveProcessingMS(phase brain.PhaseID, ms float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processingSumMS[phase] += ms
	r.processingCount[phase]++
}

// RecordSweepAttempt tallies a treasury sweep attempt and, on success,
// the amount swept.
func (r *Registry) RecordSweepAttempt(succeeded bool, amountUSD float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepsAttempted++
	if succeeded {
		r.sweepsSucceeded++
		r.sweptUSD += amountUSD
	}
}

// RecordBreakerTransition tallies a breaker state transition.
func (r *Registry) RecordBreakerTransition() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakerTransitions++
}

// PhaseSnapshot is the read-only view of one phase's counters.
type PhaseSnapshot struct {
	Submitted        int64                            `json:"submitted"`
	Approved         int64                            `json:"approved"`
	Duplicate        int64                            `json:"duplicate"`
	VetoedByReason   map[brain.DecisionReason]int64    `json:"vetoed_by_reason"`
	AvgProcessingMS  float64                           `json:"avg_processing_ms"`
}

// Snapshot is the full registry view for GET /status.
type Snapshot struct {
	Phases             map[brain.PhaseID]PhaseSnapshot `json:"phases"`
	SweepsAttempted    int64                           `json:"sweeps_attempted"`
	SweepsSucceeded    int64                           `json:"sweeps_succeeded"`
	TotalSweptUSD      float64                         `json:"total_swept_usd"`
	BreakerTransitions int64                           `json:"breaker_transitions"`
}

// Snapshot returns a consistent point-in-time copy of every counter.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	phases := make(map[brain.PhaseID]PhaseSnapshot)
	seen := make(map[brain.PhaseID]bool)
	for p := range r.submitted {
		seen[p] = true
	}
	for p := range r.vetoed {
		seen[p] = true
	}
	for p := range seen {
		var avg float64
		if r.processingCount[p] > 0 {
			avg = r.processingSumMS[p] / float64(r.processingCount[p])
		}
		vetoed := make(map[brain.DecisionReason]int64, len(r.vetoed[p]))
		for reason, count := range r.vetoed[p] {
			vetoed[reason] = count
		}
		phases[p] = PhaseSnapshot{
			Submitted:       r.submitted[p],
			Approved:        r.approved[p],
			Duplicate:       r.duplicate[p],
			VetoedByReason:  vetoed,
			AvgProcessingMS: avg,
		}
	}

	return Snapshot{
		Phases:             phases,
		SweepsAttempted:    r.sweepsAttempted,
		SweepsSucceeded:    r.sweepsSucceeded,
		TotalSweptUSD:      r.sweptUSD,
		BreakerTransitions: r.breakerTransitions,
	}
}
