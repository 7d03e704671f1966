package worker

import (
	"context"
	"math"
	"time"
)

// RetryPolicy is an exponential backoff. MaxRetries counts the attempts made
// after the first one.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay is the pause before retry number attempt (from 1). Zero fields
// mean one second, doubling.
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	initial, factor := p.InitialDelay, p.BackoffFactor
	if initial <= 0 {
		initial = time.Second
	}
	if factor <= 0 {
		factor = 2
	}
	n := max(attempt, 1) - 1

	d := time.Duration(float64(initial) * math.Pow(factor, float64(n)))
	if d <= 0 || (p.MaxDelay > 0 && d > p.MaxDelay) {
		if p.MaxDelay > 0 {
			return p.MaxDelay
		}
		return time.Second
	}
	return d
}

// Do calls fn until it succeeds, returns an error retryable rejects, or the
// retries are used up. onRetry, when set, sees each failure before the pause.
// The last error from fn is returned; a cancelled ctx during a pause returns
// ctx.Err().
func (p RetryPolicy) Do(ctx context.Context, retryable func(error) bool, onRetry func(attempt int, delay time.Duration, err error), fn func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || !retryable(err) || attempt > p.MaxRetries {
			return err
		}
		delay := p.NextDelay(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
