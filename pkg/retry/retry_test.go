package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fast(extra ...Option) []Option {
	return append([]Option{WithInitialDelay(time.Microsecond), WithMaxDelay(time.Millisecond)}, extra...)
}

func TestDo_SucceedsAfterRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errBoom)
		}
		return nil
	}, fast(WithMaxAttempts(5))...)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPlainError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errBoom
	}, fast(WithMaxAttempts(5))...)

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
}

func TestDo_PermanentIsUnwrapped(t *testing.T) {
	err := Do(context.Background(), func(ctx context.Context) error {
		return Permanent(errBoom)
	}, fast(WithRetryIf(func(error) bool { return true }))...)

	assert.Same(t, errBoom, err)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	var retried []int
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Retryable(errBoom)
	}, fast(WithMaxAttempts(4), WithOnRetry(func(attempt int, _ error, _ time.Duration) {
		retried = append(retried, attempt)
	}))...)

	assert.Same(t, errBoom, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []int{1, 2, 3}, retried)
}

func TestDo_RetryIfPredicate(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errBoom
		}
		return nil
	}, fast(WithRetryIf(func(err error) bool { return errors.Is(err, errBoom) }))...)

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithData(t *testing.T) {
	v, err := DoWithData(context.Background(), func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDelayIsCapped(t *testing.T) {
	r := New(WithInitialDelay(time.Second), WithMaxDelay(2*time.Second), WithJitter(0))
	assert.Equal(t, time.Second, r.delay(1))
	assert.Equal(t, 2*time.Second, r.delay(2))
	assert.Equal(t, 2*time.Second, r.delay(10))
}
