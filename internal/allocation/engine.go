// Package allocation maps current equity (and an optional manual override)
// to a per-phase allocation vector and tier leverage cap.
//
// Tier boundary/math style grounded on
// internal/modules/allocation/group_allocation.go (JSON-tagged result
// structs, a rounding helper); the tier/smoothstep logic itself is new —
// that file computes geography/industry group splits, a different concept
// from equity-tiering.
package allocation

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/titan-brain/internal/brain"
	"github.com/aristath/titan-brain/internal/configregistry"
)

// Params are the registry-resolved tier boundaries.
type Params struct {
	StartP2 float64
	FullP2  float64
	StartP3 float64
}

// ManualOverride is an operator-set allocation vector that, while active
// and unexpired, is returned in place of the computed vector.
type ManualOverride struct {
	W1, W2, W3 float64
}

// Validate checks the override satisfies the same invariant the computed
// vector must: weights sum to one and none is negative.
func (m ManualOverride) Validate() error {
	sum := m.W1 + m.W2 + m.W3
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("manual override weights must sum to 1 (±1e-9), got %v", sum)
	}
	for _, w := range []float64{m.W1, m.W2, m.W3} {
		if w < 0 || w > 1 {
			return fmt.Errorf("manual override weight %v out of [0,1]", w)
		}
	}
	return nil
}

// Engine computes the allocation vector for a given equity.
type Engine struct {
	log zerolog.Logger
}

// New builds an Engine.
func New(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "allocation").Logger()}
}

// smoothstep implements s(x) = 3x^2 - 2x^3 on the normalized position
// x = (E-lo)/(hi-lo), clamped to [0,1].
func smoothstep(equity, lo, hi float64) float64 {
	if hi <= lo {
		return 1
	}
	x := (equity - lo) / (hi - lo)
	if x < 0 {
		x = 0
	}
	if x > 1 {
		x = 1
	}
	return 3*x*x - 2*x*x*x
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func renormalize(w1, w2, w3 float64) (float64, float64, float64) {
	sum := w1 + w2 + w3
	if sum == 0 {
		return 0, 0, 0
	}
	return w1 / sum, w2 / sum, w3 / sum
}

func round9(f float64) float64 {
	return math.Round(f*1e9) / 1e9
}

// Compute resolves the tier for equity and returns the computed allocation
// vector (smoothstep-interpolated within a tier's span, renormalized to sum
// exactly to 1).
func (e *Engine) Compute(equity float64, p Params) brain.AllocationVector {
	var tier brain.Tier
	var w1, w2, w3, maxLev float64

	switch {
	case equity < p.StartP2:
		tier = brain.TierMicro
		w1, w2, w3, maxLev = 1.0, 0.0, 0.0, 20

	case equity < p.FullP2:
		// SMALL: transition from (0.8,0.2,0) to (0.2,0.8,0)
		tier = brain.TierSmall
		t := smoothstep(equity, p.StartP2, p.FullP2)
		w1 = lerp(0.8, 0.2, t)
		w2 = lerp(0.2, 0.8, t)
		w3 = 0
		maxLev = 10

	case equity < p.StartP3:
		tier = brain.TierMedium
		w1, w2, w3, maxLev = 0.2, 0.8, 0.0, 5

	case equity < 2*p.StartP3:
		// LARGE: transition from (0.2,0.8,0) toward (0.2,0.4,0.4)
		tier = brain.TierLarge
		t := smoothstep(equity, p.StartP3, 2*p.StartP3)
		w1 = lerp(0.2, 0.2, t)
		w2 = lerp(0.8, 0.4, t)
		w3 = lerp(0.0, 0.4, t)
		maxLev = 3

	default:
		tier = brain.TierInstitutional
		w1, w2, w3, maxLev = 0.1, 0.4, 0.5, 2
	}

	w1, w2, w3 = renormalize(w1, w2, w3)
	return brain.AllocationVector{
		Tier:        tier,
		W1:          round9(w1),
		W2:          round9(w2),
		W3:          round9(w3),
		MaxLeverage: maxLev,
	}
}

// Resolve returns the effective allocation vector: the manual override
// (validated) when one is active and unexpired, else the computed vector.
// The computed vector is always returned too, for diagnostics.
func (e *Engine) Resolve(equity float64, p Params, manual *ManualOverride) (effective, computed brain.AllocationVector, err error) {
	computed = e.Compute(equity, p)
	if manual == nil {
		return computed, computed, nil
	}
	if verr := manual.Validate(); verr != nil {
		return brain.AllocationVector{}, computed, fmt.Errorf("invalid manual allocation override: %w", verr)
	}
	effective = brain.AllocationVector{
		Tier:        computed.Tier,
		W1:          manual.W1,
		W2:          manual.W2,
		W3:          manual.W3,
		MaxLeverage: computed.MaxLeverage,
		Manual:      true,
	}
	return effective, computed, nil
}

// ResolveManualOverride reads the manual-override catalog keys and builds
// the override vector Resolve expects. Both the arbitrator's allocation
// step and the HTTP allocation read path resolve against this so an
// operator-activated override is visible on both.
//
// Returns nil, nil when no override is active — the catalog's
// allocation.manualOverrideActive default.
func ResolveManualOverride(registry *configregistry.Registry) (*ManualOverride, error) {
	active, err := registry.GetBool("allocation.manualOverrideActive")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manual override activation: %w", err)
	}
	if !active {
		return nil, nil
	}
	w1, err := registry.GetFloat("allocation.manualOverrideW1")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manual override w1: %w", err)
	}
	w2, err := registry.GetFloat("allocation.manualOverrideW2")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manual override w2: %w", err)
	}
	w3, err := registry.GetFloat("allocation.manualOverrideW3")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manual override w3: %w", err)
	}
	return &ManualOverride{W1: w1, W2: w2, W3: w3}, nil
}
