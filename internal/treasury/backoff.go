package treasury

import (
	"context"
	"math"
	"time"
)

// BackoffPolicy parameterizes WithBackoff: base delay, multiplier, and a cap
// on attempts. Grounded on the doubling-delay formula of
// internal/clients/tradernet/websocket_client.go's calculateBackoff, made
// into a reusable combinator instead of a one-off method.
type BackoffPolicy struct {
	BaseDelay  time.Duration
	Multiplier float64
	MaxRetries int
}

func (p BackoffPolicy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	return time.Duration(d)
}

// WithBackoff runs op, retrying up to policy.MaxRetries times with
// exponentially increasing delay between attempts, and returns the last
// error if every attempt fails. It stops early if ctx is cancelled.
func WithBackoff(ctx context.Context, policy BackoffPolicy, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(policy.delay(attempt - 1)):
			}
		}
		lastErr = op()
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}
