package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramiqadoumi/go-pricing-agents/pkg/retry"
)

var fast = retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond}

func TestDo_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fast, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fast, func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_ReturnsLastErrorAfterMaxAttempts(t *testing.T) {
	calls := 0
	sentinel := errors.New("connection refused")
	err := retry.Do(context.Background(), fast, func(context.Context) error {
		calls++
		return sentinel
	})
	assert.Equal(t, sentinel, err)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	sentinel := errors.New("password authentication failed")
	err := retry.Do(context.Background(), fast, func(context.Context) error {
		calls++
		return retry.Permanent(sentinel)
	})
	assert.Equal(t, sentinel, err, "permanent marker is stripped")
	assert.Equal(t, 1, calls)
	assert.NoError(t, retry.Permanent(nil))
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	err := retry.Do(ctx, retry.Config{MaxAttempts: 10, BaseDelay: 50 * time.Millisecond}, func(context.Context) error {
		return errors.New("always fails")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_OnRetryAttempts(t *testing.T) {
	var seen []int
	_ = retry.Do(context.Background(), retry.Config{
		MaxAttempts: 4,
		BaseDelay:   time.Millisecond,
		OnRetry:     func(attempt int, _ error) { seen = append(seen, attempt) },
	}, func(context.Context) error {
		return errors.New("fail")
	})

	assert.Equal(t, []int{1, 2, 3}, seen, "no callback after the final attempt")
}

func TestDo_ZeroMaxAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), retry.Config{}, func(context.Context) error {
		calls++
		return errors.New("fail")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDelay(t *testing.T) {
	cfg := retry.Config{BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	assert.Equal(t, time.Second, retry.Delay(cfg, 1))
	assert.Equal(t, 4*time.Second, retry.Delay(cfg, 2))
	assert.Equal(t, 5*time.Second, retry.Delay(cfg, 3), "capped")
}
