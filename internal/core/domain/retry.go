package domain

import "time"

// RetryPolicy governs batch submission retries. The default policy is
// no retry: the contract is explicit so callers can see and test it
// rather than infer it from a catch block.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Backoff is the fixed delay between attempts.
	Backoff time.Duration
}

// NoRetry returns the default single-attempt policy.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// Attempts returns the effective attempt count, never below one.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}
