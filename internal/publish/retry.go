package publish

import (
	"context"
	"time"
)

// RetryPolicy bounds an inline retry loop around a platform call.
// ShouldRetry decides whether a failed attempt is worth repeating; Delay,
// when nonzero, is waited between attempts through the clock.
type RetryPolicy struct {
	Attempts    int
	Delay       time.Duration
	ShouldRetry func(error) bool
}

// Do invokes fn up to Attempts times, passing the 1-based attempt number so
// callers can vary the request between attempts. Returns nil on the first
// success, the last error once attempts are exhausted, or the context error
// if cancelled while waiting.
func (p RetryPolicy) Do(ctx context.Context, clock Clock, fn func(attempt int) error) error {
	if clock == nil {
		clock = SystemClock()
	}
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts || p.ShouldRetry == nil || !p.ShouldRetry(lastErr) {
			return lastErr
		}
		if p.Delay > 0 {
			if err := clock.Sleep(ctx, p.Delay); err != nil {
				return err
			}
		}
	}
	return lastErr
}
