package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgdataset/pkg/config"
	errs "imgdataset/pkg/errors"
	"imgdataset/pkg/logger"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0, // No jitter for predictable testing
	}

	tests := []struct {
		attempt     int
		expected    time.Duration
		description string
	}{
		{0, 0, "No attempt yet"},
		{1, 100 * time.Millisecond, "First attempt"},
		{2, 200 * time.Millisecond, "Second attempt"},
		{3, 400 * time.Millisecond, "Third attempt"},
		{4, 800 * time.Millisecond, "Fourth attempt"},
		{5, 1 * time.Second, "Fifth attempt (capped at max)"},
		{6, 1 * time.Second, "Sixth attempt (still capped)"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			assert.Equal(t, test.expected, backoff.NextDelay(test.attempt))
		})
	}
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	delays := make(map[time.Duration]bool)
	for i := 0; i < 20; i++ {
		delay := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, delay, 140*time.Millisecond)
		assert.LessOrEqual(t, delay, 260*time.Millisecond)
		delays[delay] = true
	}

	if len(delays) < 2 {
		t.Error("Expected multiple different delays with jitter, but got consistent delays")
	}
}

func TestLinearBackoff(t *testing.T) {
	backoff := &LinearBackoff{
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  500 * time.Millisecond,
		Increment: 100 * time.Millisecond,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 300 * time.Millisecond},
		{5, 500 * time.Millisecond},
		{6, 500 * time.Millisecond}, // Capped at max
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, backoff.NextDelay(test.attempt), "attempt %d", test.attempt)
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		if attempts < 3 {
			return errs.New(errs.ErrorTypeServerError, 503, "unavailable")
		}
		return nil
	}

	var retried []int
	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			retried = append(retried, attempt)
		},
		Context: context.Background(),
	}

	require.NoError(t, Do(op, cfg))
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	netErr := errs.New(errs.ErrorTypeNetwork, 0, "connection reset")
	op := func() error {
		attempts++
		return netErr
	}

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Context:     context.Background(),
	}

	err := Do(op, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, netErr)
	assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
	assert.Equal(t, 3, attempts)
}

func TestRetryWithNonRetryableError(t *testing.T) {
	for _, errorType := range []errs.ErrorType{errs.ErrorTypeAuth, errs.ErrorTypeNotFound, errs.ErrorTypeParsing} {
		t.Run(string(errorType), func(t *testing.T) {
			attempts := 0
			typed := errs.New(errorType, 400, "nope")

			err := Do(func() error {
				attempts++
				return typed
			}, &Config{
				MaxAttempts: 5,
				Backoff:     &ConstantBackoff{Delay: time.Millisecond},
				Context:     context.Background(),
			})

			assert.Same(t, typed, err)
			assert.Equal(t, 1, attempts)
		})
	}
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	op := func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 50 * time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Context:     ctx,
	}

	err := Do(op, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts)
}

func TestRetryAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := Do(func() error {
		called = true
		return nil
	}, DefaultConfig().WithContext(ctx))

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", errs.New(errs.ErrorTypeNetwork, 0, "reset"), true},
		{"rate limit", errs.New(errs.ErrorTypeRateLimit, 429, "slow down"), true},
		{"server", errs.New(errs.ErrorTypeServerError, 502, "bad gateway"), true},
		{"auth", errs.New(errs.ErrorTypeAuth, 403, "forbidden"), false},
		{"invalid image", errs.New(errs.ErrorTypeInvalidImage, 0, "not an image"), false},
		{"filesystem", &errs.FilesystemError{Op: "write", Path: "/x", Err: errors.New("denied")}, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"plain", errors.New("eof"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultRetryIf(tt.err))
		})
	}
}

func TestErrorTypeBackoff(t *testing.T) {
	etb := NewErrorTypeBackoff(time.Second)

	network, ok := etb.GetBackoffForError(errs.ErrorTypeNetwork).(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, time.Second, network.BaseDelay)

	rateLimit, ok := etb.GetBackoffForError(errs.ErrorTypeRateLimit).(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, 15*time.Second, rateLimit.BaseDelay)

	assert.Same(t, etb.DefaultBackoff, etb.GetBackoffForError(errs.ErrorTypeUnknown))
}

func TestErrorBackoffOverridesBackoff(t *testing.T) {
	etb := &ErrorTypeBackoff{
		NetworkErrorBackoff: &ConstantBackoff{Delay: time.Millisecond},
		RateLimitBackoff:    &ConstantBackoff{Delay: 3 * time.Millisecond},
		ServerErrorBackoff:  &ConstantBackoff{Delay: 2 * time.Millisecond},
		DefaultBackoff:      &ConstantBackoff{},
	}

	var delays []time.Duration
	attempts := 0
	err := Do(func() error {
		attempts++
		if attempts == 1 {
			return errs.New(errs.ErrorTypeRateLimit, 429, "slow down")
		}
		return nil
	}, &Config{
		MaxAttempts:  2,
		Backoff:      &ConstantBackoff{Delay: time.Hour},
		ErrorBackoff: etb,
		OnRetry: func(_ int, _ error, d time.Duration) {
			delays = append(delays, d)
		},
		Context: context.Background(),
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{3 * time.Millisecond}, delays)
}

func TestFromRateLimit(t *testing.T) {
	cfg := FromRateLimit(config.RateLimitConfig{
		MaxRetries:        2,
		RetryDelay:        500 * time.Millisecond,
		BackoffMultiplier: 3,
	}, logger.NewNopLogger())

	assert.Equal(t, 3, cfg.MaxAttempts)
	eb, ok := cfg.Backoff.(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, 500*time.Millisecond, eb.BaseDelay)
	assert.Equal(t, 3.0, eb.Multiplier)

	// Zero retries still runs the operation once
	cfg = FromRateLimit(config.RateLimitConfig{}, nil)
	assert.Equal(t, 1, cfg.MaxAttempts)
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	op := func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("temporary error")
		}
		return "success", nil
	}

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		Context:     context.Background(),
	}

	result, err := DoWithResult(op, cfg)
	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 2, attempts)
}
