package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// retryPolicy controls per-model retry behavior with exponential backoff.
type retryPolicy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitter       bool
	retryIf      func(error) bool
}

// doWithRetry runs fn until it succeeds, the error is non-retryable, the
// attempt budget is spent, or the context is canceled.
func doWithRetry[T any](ctx context.Context, p retryPolicy, fn func() (T, error)) (T, error) {
	var zero T
	var result T
	var lastErr error
	delay := p.initialDelay

	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, fmt.Errorf("retry canceled: %w", ctx.Err())
			case <-time.After(delay):
			}

			delay = time.Duration(float64(delay) * p.multiplier)
			if delay > p.maxDelay {
				delay = p.maxDelay
			}
			if p.jitter {
				delay += time.Duration(rand.Float64() * float64(delay) * 0.1)
			}
		}

		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}
		if p.retryIf != nil && !p.retryIf(lastErr) {
			return zero, lastErr
		}
	}

	return zero, fmt.Errorf("max retries exceeded: %w", lastErr)
}
