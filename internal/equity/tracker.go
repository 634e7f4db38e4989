// Package equity holds the single mutable equity figure the arbitrator's
// position-sizing ceiling and the circuit breaker's drawdown check both
// read from, updated as realized PnL lands on fills.
package equity

import "sync"

// Tracker is a mutex-guarded running equity figure, following the same
// narrow-surface style as performance.Tracker.
type Tracker struct {
	mu      sync.RWMutex
	equity  float64
	dayOpen float64
}

// New seeds a Tracker at the given starting equity.
func New(initial float64) *Tracker {
	return &Tracker{equity: initial, dayOpen: initial}
}

// CurrentEquity implements arbitrator.EquitySource.
func (t *Tracker) CurrentEquity() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.equity
}

// ApplyPnL adjusts equity by a realized PnL delta and returns the new
// equity figure.
func (t *Tracker) ApplyPnL(delta float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.equity += delta
	return t.equity
}

// DailyDrawdownFrac returns the fractional drop from the day's opening
// equity, 0 if equity is at or above that open.
func (t *Tracker) DailyDrawdownFrac() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.dayOpen <= 0 {
		return 0
	}
	drop := (t.dayOpen - t.equity) / t.dayOpen
	if drop < 0 {
		return 0
	}
	return drop
}

// ResetDayOpen marks the current equity as the new day's opening
// reference, for the daily drawdown calculation. No scheduled job in this
// module calls it, so the reference changes only on an explicit call.
func (t *Tracker) ResetDayOpen() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dayOpen = t.equity
}
