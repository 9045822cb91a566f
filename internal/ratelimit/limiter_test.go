package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline-labs/driftline/internal/core/domain"
)

// fakeClock lets tests control window rollover.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestLimiter(budget int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := New(budget, window)
	l.now = clock.now
	return l, clock
}

func TestTryAcquireWithinBudget(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.TryAcquire())
	}
	assert.Equal(t, 3, l.Used())
	assert.Equal(t, 0, l.Remaining())
}

func TestTryAcquireExhaustedBudget(t *testing.T) {
	l, _ := newTestLimiter(2, time.Minute)

	require.NoError(t, l.TryAcquire())
	require.NoError(t, l.TryAcquire())

	err := l.TryAcquire()
	require.Error(t, err)

	var rle *domain.RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, time.Minute, rle.RetryAfter)
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
}

func TestWindowReset(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)

	require.NoError(t, l.TryAcquire())
	require.Error(t, l.TryAcquire())

	// Budget is restored once the window elapses.
	clock.advance(time.Minute)
	require.NoError(t, l.TryAcquire())
	assert.Equal(t, 1, l.Used())
}

func TestExactBudgetBoundary(t *testing.T) {
	// After exactly callsPerWindow acquisitions, the next one fails.
	const budget = 5000
	l, _ := newTestLimiter(budget, time.Hour)

	for i := 0; i < budget; i++ {
		require.NoError(t, l.TryAcquire())
	}

	err := l.TryAcquire()
	var rle *domain.RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, 0, l.Remaining())
}

func TestRetryAfterShrinksWithinWindow(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)

	require.NoError(t, l.TryAcquire())
	clock.advance(40 * time.Second)

	err := l.TryAcquire()
	var rle *domain.RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, 20*time.Second, rle.RetryAfter)
}

func TestWaitConsumesBudget(t *testing.T) {
	l, _ := newTestLimiter(2, time.Minute)

	ctx := context.Background()
	require.NoError(t, l.Wait(ctx))
	require.NoError(t, l.Wait(ctx))
	require.Error(t, l.Wait(ctx))
}

func TestWaitProactiveBucketRespectsCancellation(t *testing.T) {
	l := New(100, time.Minute, WithProactiveRate(0.001))
	// First call takes the single burst token.
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRateLimited)
}

func TestConcurrentAcquisitionsShareBudget(t *testing.T) {
	l, _ := newTestLimiter(100, time.Minute)

	done := make(chan error, 100)
	for i := 0; i < 100; i++ {
		go func() {
			done <- l.TryAcquire()
		}()
	}
	for i := 0; i < 100; i++ {
		require.NoError(t, <-done)
	}

	// The shared counter is exhausted exactly once.
	require.Error(t, l.TryAcquire())
}
