// Package backoff provides delay strategies for retrying failed store
// operations. Workers sleep between reconnect attempts according to a
// Strategy; optimistic transaction retries inside the queue never back
// off and do not use this package.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt. Attempts are
// numbered from 1.
type Strategy interface {
	Delay(attempt int) time.Duration
}

// Fixed waits the same duration before every attempt.
type Fixed struct {
	Interval time.Duration
}

// NewFixed creates a fixed-delay strategy.
func NewFixed(interval time.Duration) *Fixed {
	return &Fixed{Interval: interval}
}

// Delay returns the configured interval regardless of attempt.
func (f *Fixed) Delay(int) time.Duration { return f.Interval }

// Exponential doubles the delay each attempt, capped at Max.
// Delay = min(Initial * 2^(attempt-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns the capped exponential delay for attempt.
func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(attempt-1)))
	if e.Max > 0 && (d > e.Max || d <= 0) {
		return e.Max
	}
	return d
}

// Jitter randomizes another strategy's delay over [0, base] so that a
// fleet of workers hitting the same outage does not reconnect in
// lockstep.
type Jitter struct {
	Base Strategy
}

// NewJitter wraps base with full jitter.
func NewJitter(base Strategy) *Jitter {
	return &Jitter{Base: base}
}

// Delay returns a uniformly random duration in [0, Base.Delay(attempt)].
func (j *Jitter) Delay(attempt int) time.Duration {
	base := j.Base.Delay(attempt)
	if base <= 0 {
		return 0
	}
	return time.Duration(rand.Float64() * float64(base)) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// Default returns the strategy workers use for store errors: jittered
// exponential with 500ms initial and 30s cap.
func Default() Strategy {
	return NewJitter(NewExponential(500*time.Millisecond, 30*time.Second))
}
