package core

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is the per-action retry configuration. Attempts are bounded
// and delays grow exponentially up to MaxDelay so a single action cannot
// stall the run indefinitely.
type RetryPolicy struct {
	MaxAttempts        int           `json:"maxAttempts"`
	BaseDelay          time.Duration `json:"baseDelay"`
	MaxDelay           time.Duration `json:"maxDelay"`
	CoordinateFallback bool          `json:"coordinateFallback"`
	LowLevelFallback   bool          `json:"lowLevelFallback"`
}

// DefaultRetryPolicy returns the standard policy: 3 attempts, base delay
// doubling, both fallback channels permitted.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:        3,
		BaseDelay:          500 * time.Millisecond,
		MaxDelay:           4 * time.Second,
		CoordinateFallback: true,
		LowLevelFallback:   true,
	}
}

// NewBackOff builds the backoff schedule for one action: exponential from
// BaseDelay, capped at MaxDelay, limited to MaxAttempts-1 retries after the
// first attempt.
func (p RetryPolicy) NewBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = 2.0
	b.RandomizationFactor = 0
	b.Reset()
	if p.MaxAttempts <= 1 {
		return &backoff.StopBackOff{}
	}
	return backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
}
