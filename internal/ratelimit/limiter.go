// Package ratelimit bounds outbound adapter calls within a fixed
// window. One limiter is shared across every call issued by a
// connector instance, including concurrent enrichment calls.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/driftline-labs/driftline/internal/core/domain"
)

// Limiter enforces a fixed-window call budget, optionally smoothed by
// a proactive token bucket so a burst does not exhaust the window in
// its first seconds.
type Limiter struct {
	mu             sync.Mutex
	callsPerWindow int
	window         time.Duration
	callsUsed      int
	windowResetAt  time.Time
	bucket         *rate.Limiter
	now            func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithProactiveRate adds a token bucket that smooths calls to the
// given steady rate (calls per second). Wait blocks on it before
// consuming window budget.
func WithProactiveRate(callsPerSecond float64) Option {
	return func(l *Limiter) {
		if callsPerSecond > 0 {
			l.bucket = rate.NewLimiter(rate.Limit(callsPerSecond), 1)
		}
	}
}

// New creates a limiter with the given budget and window.
func New(callsPerWindow int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		callsPerWindow: callsPerWindow,
		window:         window,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryAcquire consumes one call from the window budget. On the call
// that would exceed the budget it returns a domain.RateLimitError
// carrying the remaining wait; the call is never silently dropped.
func (l *Limiter) TryAcquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.windowResetAt.IsZero() || !now.Before(l.windowResetAt) {
		l.callsUsed = 0
		l.windowResetAt = now.Add(l.window)
	}

	if l.callsUsed >= l.callsPerWindow {
		return &domain.RateLimitError{
			RetryAfter: l.windowResetAt.Sub(now),
			ResetAt:    l.windowResetAt,
		}
	}

	l.callsUsed++
	return nil
}

// Wait blocks on the proactive bucket (when configured), then
// consumes window budget via TryAcquire.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.bucket != nil {
		if err := l.bucket.Wait(ctx); err != nil {
			return err
		}
	}
	return l.TryAcquire()
}

// Used returns the number of calls consumed in the current window.
func (l *Limiter) Used() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.callsUsed
}

// Remaining returns the budget left in the current window.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	remaining := l.callsPerWindow - l.callsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// WindowResetAt returns when the current window resets. Zero before
// the first acquisition.
func (l *Limiter) WindowResetAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.windowResetAt
}
