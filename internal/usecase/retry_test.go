package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingPolicy(maxRetries int) (RetryPolicy, *[]time.Duration) {
	var slept []time.Duration
	p := RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  300 * time.Millisecond,
		Jitter:     200 * time.Millisecond,
		Sleep: func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
		Rand: func(n int64) int64 { return n / 2 },
	}
	return p, &slept
}

func TestRetryPolicySucceedsAfterFailures(t *testing.T) {
	p, slept := recordingPolicy(2)
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{400 * time.Millisecond, 700 * time.Millisecond}, *slept)
}

func TestRetryPolicyGivesUp(t *testing.T) {
	p, slept := recordingPolicy(2)
	want := errors.New("down")
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return want
	})

	assert.ErrorIs(t, err, want)
	assert.Equal(t, 3, calls)
	assert.Len(t, *slept, 2)
}

func TestRetryPolicyZeroRetries(t *testing.T) {
	p, slept := recordingPolicy(0)
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("x")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestRetryPolicyStopsOnCancel(t *testing.T) {
	p, _ := recordingPolicy(5)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBackoffStaysInRange(t *testing.T) {
	p := DefaultRetryPolicy()
	for attempt := 1; attempt <= 3; attempt++ {
		for i := 0; i < 50; i++ {
			d := p.Backoff(attempt)
			lo := 300 * time.Millisecond * time.Duration(attempt)
			assert.GreaterOrEqual(t, d, lo)
			assert.Less(t, d, lo+200*time.Millisecond)
		}
	}
}

func TestSleepCtxHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
