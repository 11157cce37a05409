package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Budget tracks the remaining GitHub API request quota and gates outbound
// calls. Callers Acquire before each request; the response headers are fed
// back through UpdateFromResponse so the local view follows what the API
// actually reports (other processes may be spending the same quota).
type Budget struct {
	mu        sync.Mutex
	remaining int
	resetAt   time.Time
	cooldown  time.Time
	probed    bool
	now       func() time.Time
	notifyCh  chan struct{}
}

// NewBudget starts with a conservative full quota; the first response
// observed via UpdateFromResponse replaces the estimate.
func NewBudget() *Budget {
	return &Budget{
		remaining: 5000,
		resetAt:   time.Now().Add(1 * time.Hour),
		now:       time.Now,
		notifyCh:  make(chan struct{}),
	}
}

// Remaining reports the currently known remaining quota.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// Acquire reserves n request slots, suspending the calling goroutine while
// the quota is exhausted and the reset time has not passed. Only the caller
// waits; other goroutines are unaffected. It fails only when ctx is done.
func (b *Budget) Acquire(ctx context.Context, n int) error {
	if ctx == nil {
		return fmt.Errorf("ratelimit: Acquire requires a context")
	}
	if n <= 0 {
		return fmt.Errorf("ratelimit: Acquire n must be > 0 (got %d)", n)
	}
	for i := 0; i < n; i++ {
		if err := b.acquireOne(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (b *Budget) acquireOne(ctx context.Context) error {
	for {
		b.mu.Lock()
		now := b.now()

		// Secondary rate limit (Retry-After) takes precedence over quota.
		if now.Before(b.cooldown) {
			until := b.cooldown
			ch := b.notifyCh
			b.mu.Unlock()
			if err := b.waitUntil(ctx, now, until, ch); err != nil {
				return err
			}
			continue
		}

		if b.remaining > 0 {
			b.remaining--
			b.mu.Unlock()
			return nil
		}

		// Past reset with no fresh observation: let exactly one probe
		// request through, then hold everyone until a response updates us.
		if !now.Before(b.resetAt) {
			if !b.probed {
				b.probed = true
				b.mu.Unlock()
				return nil
			}
			ch := b.notifyCh
			b.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ch:
				continue
			}
		}

		resetAt := b.resetAt
		ch := b.notifyCh
		b.mu.Unlock()
		if err := b.waitUntil(ctx, now, resetAt, ch); err != nil {
			return err
		}
	}
}

// waitUntil sleeps until the deadline, an update notification, or ctx
// cancellation, whichever comes first. A nil return means "re-check".
func (b *Budget) waitUntil(ctx context.Context, now, until time.Time, notify <-chan struct{}) error {
	wait := until.Sub(now)
	if wait < 0 {
		wait = 0
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-notify:
		return nil
	case <-timer.C:
		return nil
	}
}

func (b *Budget) signalLocked() {
	close(b.notifyCh)
	b.notifyCh = make(chan struct{})
}

// UpdateFromResponse synchronizes the budget with the quota the API reported.
// It is called after every call, success or failure; the reported values are
// authoritative and override the local estimate.
func (b *Budget) UpdateFromResponse(resp *http.Response) {
	if b == nil || resp == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	changed := false

	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
			until := b.now().Add(time.Duration(seconds) * time.Second)
			if until.After(b.cooldown) {
				b.cooldown = until
				changed = true
			}
		}
	}

	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil && val >= 0 {
			if b.remaining != val {
				b.remaining = val
				changed = true
			}
		}
	}

	if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		if val, err := strconv.ParseInt(reset, 10, 64); err == nil && val > 0 {
			at := time.Unix(val, 0)
			if !b.resetAt.Equal(at) {
				b.resetAt = at
				changed = true
			}
		}
	}

	if changed {
		b.probed = false
		b.signalLocked()
	}
}
