// Package graph provides the core graph execution engine and runtime for the evolutionary beam search orchestrator.
package graph

import (
	"math/rand"
	"time"
)

// RetryPolicy defines automatic retry configuration for transient node failures.
//
// When a node execution fails, the retry policy determines whether the failure
// is retryable and how long to wait before the next attempt. Exponential backoff
// with jitter is used to avoid thundering herd problems against an upstream
// inference provider.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of execution attempts (including initial attempt).
	// Must be >= 1. A value of 1 means no retries.
	MaxAttempts int

	// BaseDelay is the base delay for exponential backoff between retries.
	// The actual delay is computed as: min(BaseDelay * 2^attempt, MaxDelay) + jitter.
	BaseDelay time.Duration

	// MaxDelay is the maximum delay cap for exponential backoff.
	// Must be >= BaseDelay.
	MaxDelay time.Duration

	// Retryable is a predicate function that determines if an error is retryable.
	// If nil, all errors are considered non-retryable.
	// Common patterns: network timeouts, HTTP 429/503/504, provider rate limits.
	Retryable func(error) bool
}

// computeBackoff calculates the delay before retrying a failed call using
// exponential backoff with jitter.
//
// delay = min(base * 2^attempt, maxDelay) + jitter(0, base)
//
// The exponential component doubles the delay with each retry, reducing load
// on a struggling provider; jitter randomizes retry timing across concurrent
// callers to avoid synchronized retry storms.
func computeBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	exponentialDelay := base * (1 << attempt)
	if maxDelay > 0 && exponentialDelay > maxDelay {
		exponentialDelay = maxDelay
	}

	var jitter time.Duration
	if rng != nil {
		jitter = time.Duration(rng.Int63n(int64(base)))
	} else {
		jitter = time.Duration(rand.Int63n(int64(base))) // #nosec G404 -- jitter for retry timing, not security
	}

	return exponentialDelay + jitter
}

// Validate checks if the RetryPolicy configuration is valid.
// Returns an error if any constraints are violated:
//   - MaxAttempts must be >= 1 (1 means no retries, just initial attempt)
//   - If both MaxDelay and BaseDelay are > 0, then MaxDelay must be >= BaseDelay
//     (MaxDelay == 0 is treated as "no maximum delay cap")
func (rp *RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return ErrInvalidRetryPolicy
	}
	if rp.MaxDelay > 0 && rp.BaseDelay > 0 && rp.MaxDelay < rp.BaseDelay {
		return ErrInvalidRetryPolicy
	}
	return nil
}

// Retry runs fn according to the policy, sleeping between attempts with
// computeBackoff and giving up early if Retryable returns false. It takes
// no context and does not stop on cancellation; the attempt function is
// responsible for observing its own context.
func (rp *RetryPolicy) Retry(attempt func() error) error {
	if rp.MaxAttempts < 1 {
		return rp.singleAttempt(attempt)
	}
	rng := rand.New(rand.NewSource(1)) // #nosec G404 -- deterministic jitter source, not security
	var lastErr error
	for i := 0; i < rp.MaxAttempts; i++ {
		lastErr = attempt()
		if lastErr == nil {
			return nil
		}
		if rp.Retryable == nil || !rp.Retryable(lastErr) {
			return lastErr
		}
		if i < rp.MaxAttempts-1 {
			time.Sleep(computeBackoff(i, rp.BaseDelay, rp.MaxDelay, rng))
		}
	}
	return lastErr
}

func (rp *RetryPolicy) singleAttempt(attempt func() error) error {
	return attempt()
}
