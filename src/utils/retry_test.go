package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"Backend-Volunteer-Hours/src/clock"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyDelay(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 500*time.Millisecond, p.Delay(1))
	assert.Equal(t, time.Second, p.Delay(2))
	assert.Equal(t, 2*time.Second, p.Delay(3))
}

func TestRetryPolicyDoRetriesUntilSuccess(t *testing.T) {
	start := time.Date(2025, 1, 25, 9, 0, 0, 0, time.UTC)
	clk := clock.Fake(start)
	calls := 0

	err := DefaultRetryPolicy().Do(context.Background(), clk, nil, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1500*time.Millisecond, clk.Now().Sub(start))
}

func TestRetryPolicyDoGivesUp(t *testing.T) {
	clk := clock.Fake(time.Now())
	calls := 0
	boom := errors.New("boom")

	err := DefaultRetryPolicy().Do(context.Background(), clk, nil, func(ctx context.Context) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyDoStopsOnPermanentError(t *testing.T) {
	clk := clock.Fake(time.Now())
	calls := 0
	permanent := errors.New("rejected")

	err := DefaultRetryPolicy().Do(context.Background(), clk, func(err error) bool {
		return !errors.Is(err, permanent)
	}, func(ctx context.Context) error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyDoHonoursCancelledContext(t *testing.T) {
	clk := clock.Fake(time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0

	err := DefaultRetryPolicy().Do(ctx, clk, nil, func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyDoStopsWaitingWhenCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour, BackoffFactor: 2}
	boom := errors.New("boom")
	calls := 0

	began := time.Now()
	err := p.Do(ctx, clock.Real(), nil, func(ctx context.Context) error {
		calls++
		time.AfterFunc(20*time.Millisecond, cancel)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(began), 10*time.Second)
}
