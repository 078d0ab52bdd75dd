package usecase

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy retries a call with linear backoff plus random jitter:
// attempt n waits BaseDelay*n + [0, Jitter).
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Jitter     time.Duration

	// Sleep and Rand are swapped out in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Rand  func(n int64) int64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  300 * time.Millisecond,
		Jitter:     200 * time.Millisecond,
	}
}

// Backoff returns the wait before retry number attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay * time.Duration(attempt)
	if p.Jitter > 0 {
		rnd := p.Rand
		if rnd == nil {
			rnd = rand.Int63n
		}
		d += time.Duration(rnd(int64(p.Jitter)))
	}
	return d
}

// Do calls fn until it succeeds, the retries run out, or ctx is done.
// The last error from fn is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.MaxRetries || ctx.Err() != nil {
			return err
		}
		if serr := sleep(ctx, p.Backoff(attempt+1)); serr != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
