// Package ratelimit spaces outbound requests so county sites never see a
// burst from one extractor instance, across every property in a batch.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a minimum interval between calls to Wait. It is safe for
// concurrent use; callers across goroutines serialize on the same clock.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// New returns a limiter with the given minimum spacing. A non-positive
// interval disables limiting.
func New(interval time.Duration) *Limiter {
	return &Limiter{interval: interval}
}

// Wait blocks until at least the configured interval has passed since the
// previous request, or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.interval <= 0 {
		return nil
	}

	l.mu.Lock()
	now := time.Now()
	next := l.last.Add(l.interval)
	if next.Before(now) {
		next = now
	}
	l.last = next
	l.mu.Unlock()

	delay := time.Until(next)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
