package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()
	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, time.Second, config.BaseDelay)
	assert.Equal(t, 30*time.Second, config.MaxDelay)
	assert.True(t, config.Jitter)
}

func TestRetryWithBackoff_Success(t *testing.T) {
	result := RetryWithBackoff(context.Background(), fastConfig(), "noop", func(context.Context) error {
		return nil
	})
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.NoError(t, result.LastError)
}

func TestRetryWithBackoff_SuccessAfterRetries(t *testing.T) {
	calls := 0
	result := RetryWithBackoff(context.Background(), fastConfig(), "ping", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	})
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
}

func TestRetryWithBackoff_Exhausted(t *testing.T) {
	result := RetryWithBackoff(context.Background(), fastConfig(), "ping", func(context.Context) error {
		return errors.New("connection reset by peer")
	})
	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.EqualError(t, result.LastError, "connection reset by peer")
}

func TestRetryWithBackoff_NonRetryable(t *testing.T) {
	result := RetryWithBackoff(context.Background(), fastConfig(), "ping", func(context.Context) error {
		return errors.New("password authentication failed")
	})
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := fastConfig()
	config.BaseDelay = time.Hour
	config.MaxDelay = time.Hour

	result := RetryWithBackoff(ctx, config, "ping", func(context.Context) error {
		cancel()
		return errors.New("timeout")
	})
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.EqualError(t, result.LastError, "timeout")
}

func TestCalculateDelay(t *testing.T) {
	config := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2.0}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, calculateDelay(config, tt.attempt), "attempt %d", tt.attempt)
	}

	config.Jitter = true
	for i := 0; i < 20; i++ {
		d := calculateDelay(config, 1)
		assert.InDelta(t, float64(200*time.Millisecond), float64(d), float64(20*time.Millisecond))
	}
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.True(t, IsRetryableError(errors.New("pq: the database system is starting up")))
	assert.True(t, IsRetryableError(errors.New("dial tcp 127.0.0.1:5432: connect: Connection Refused")))
	assert.True(t, IsRetryableError(errors.New("unexpected EOF")))
	assert.False(t, IsRetryableError(errors.New(`pq: database "chat" does not exist`)))
}
