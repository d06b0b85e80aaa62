package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastPolicy(maxRetries int) *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestBackoffRetryer_Success(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(3), zap.NewNop())

	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, callCount, "应该只调用一次")
}

func TestBackoffRetryer_RetryAndSuccess(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(3), zap.NewNop())

	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestBackoffRetryer_MaxRetriesExceeded(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(2), zap.NewNop())
	testErr := errors.New("persistent error")

	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		return testErr
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, testErr)
	assert.Equal(t, 3, callCount, "1 次初始调用 + 2 次重试")
}

func TestBackoffRetryer_ShouldRetryStopsEarly(t *testing.T) {
	permanent := errors.New("bad request")
	policy := fastPolicy(5)
	policy.ShouldRetry = func(err error) bool { return !errors.Is(err, permanent) }
	retryer := NewBackoffRetryer(policy, nil)

	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, callCount)
}

func TestBackoffRetryer_ContextCancelled(t *testing.T) {
	policy := fastPolicy(10)
	policy.InitialDelay = 50 * time.Millisecond
	policy.MaxDelay = 50 * time.Millisecond
	retryer := NewBackoffRetryer(policy, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := retryer.Do(ctx, func() error { return errors.New("boom") })
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDoWithResult(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(1), nil)

	attempts := 0
	v, err := DoWithResult(context.Background(), retryer, func() (int, error) {
		attempts++
		if attempts == 1 {
			return 0, errors.New("once")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestCalculateDelay_Capped(t *testing.T) {
	r := NewBackoffRetryer(&RetryPolicy{
		MaxRetries:   5,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     25 * time.Millisecond,
		Multiplier:   2.0,
	}, nil).(*backoffRetryer)

	assert.Equal(t, 10*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 20*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 25*time.Millisecond, r.calculateDelay(3))
}
