package publish

import (
	"context"
	"time"
)

// Clock abstracts time for adapters that poll with fixed delays, so tests
// can run the poll loops without real sleeps.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SystemClock returns a clock backed by the wall clock.
func SystemClock() Clock { return realClock{} }

// FakeClock advances instantly on Sleep. Adapters under test observe the
// accumulated offset through Now.
type FakeClock struct {
	Base    time.Time
	elapsed time.Duration
}

func (f *FakeClock) Now() time.Time {
	base := f.Base
	if base.IsZero() {
		base = time.Unix(1700000000, 0).UTC()
	}
	return base.Add(f.elapsed)
}

func (f *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d > 0 {
		f.elapsed += d
	}
	return nil
}

// Slept reports total virtual time spent sleeping.
func (f *FakeClock) Slept() time.Duration { return f.elapsed }
