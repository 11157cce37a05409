package engine

import (
	"math/rand"
	"time"

	"reporanger/internal/ops"
)

// RetryPolicy decides whether a failed attempt is retried and how long to
// wait before the next one. Only Transient failures are retried; every
// other kind terminates the attempt sequence immediately.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64

	// jitter returns a value in [0,1); tests inject a deterministic source.
	jitter func() float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   1 * time.Second,
		MaxDelay:    60 * time.Second,
		Multiplier:  2,
	}
}

func (p RetryPolicy) ShouldRetry(a ops.Attempt) bool {
	if a.Err == nil {
		return false
	}
	if ops.KindOf(a.Err) != ops.KindTransient {
		return false
	}
	return a.Number < p.MaxAttempts
}

// BackoffDelay returns the wait before attempt+1: exponential growth from
// BaseDelay capped at MaxDelay, with equal jitter so concurrent retries
// spread out instead of thundering together.
func (p RetryPolicy) BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
		if d >= float64(p.MaxDelay) {
			d = float64(p.MaxDelay)
			break
		}
	}
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}

	j := p.jitter
	if j == nil {
		j = rand.Float64
	}
	half := d / 2
	return time.Duration(half + j()*half)
}
