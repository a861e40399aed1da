package clock

import (
	"context"
	"time"
)

// Clock allows injecting time in domain/services. SleepUntil is the
// scheduler's suspension primitive; implementations must return early
// with the context's error when it is cancelled.
type Clock interface {
	Now() time.Time
	SleepUntil(ctx context.Context, t time.Time) error
}

type systemClock struct{}

// NewSystem returns a clock backed by time.Now.
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func (systemClock) SleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type fixedClock struct {
	now time.Time
}

// NewFixed returns a clock that always returns the same instant and
// never actually sleeps (useful for tests).
func NewFixed(t time.Time) Clock {
	return fixedClock{now: t.UTC()}
}

func (f fixedClock) Now() time.Time {
	return f.now
}

func (f fixedClock) SleepUntil(ctx context.Context, t time.Time) error {
	return ctx.Err()
}
