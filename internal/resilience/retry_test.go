package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastRetry keeps backoff negligible so tests do not sleep.
func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		JitterFraction: 0,
	}
}

func TestDoVal_FirstAttemptSucceeds(t *testing.T) {
	calls := 0
	got, err := DoVal(context.Background(), fastRetry(3), func(context.Context) ([]string, error) {
		calls++
		return []string{"headline"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"headline"}, got)
	assert.Equal(t, 1, calls)
}

func TestDoVal_RecoversFromTransientError(t *testing.T) {
	calls := 0
	got, err := DoVal(context.Background(), fastRetry(3), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, NewTransientError(eris.New("feed: unexpected status 503"), 503)
		}
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, 3, calls)
}

func TestDoVal_ExhaustsAttempts(t *testing.T) {
	calls := 0
	got, err := DoVal(context.Background(), fastRetry(3), func(context.Context) (int, error) {
		calls++
		return 42, NewTransientError(eris.New("feed: unexpected status 429"), 429)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	// Zero value on failure, never a partial result.
	assert.Equal(t, 0, got)
}

func TestDoVal_PermanentErrorFailsFast(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastRetry(3), func(context.Context) (int, error) {
		calls++
		return 0, eris.New("feed: unexpected status 404")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_ContextCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := DoVal(ctx, fastRetry(5), func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(eris.New("slow feed"), 504)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_CustomShouldRetry(t *testing.T) {
	cfg := fastRetry(3)
	cfg.ShouldRetry = func(err error) bool {
		return err.Error() == "try again"
	}

	calls := 0
	_, err := DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, eris.New("try again")
		}
		return 0, eris.New("give up")
	})

	require.Error(t, err)
	assert.Equal(t, "give up", err.Error())
	assert.Equal(t, 2, calls)
}

func TestDoVal_OnRetryObservesAttempts(t *testing.T) {
	var attempts []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, err error) {
		attempts = append(attempts, attempt)
		assert.Error(t, err)
	}

	_, _ = DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		return 0, NewTransientError(eris.New("flaky"), 500)
	})

	// Fires before each sleep, never after the final attempt.
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoVal_ZeroConfigUsesDefaults(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), RetryConfig{}, func(context.Context) (int, error) {
		calls++
		return 0, eris.New("permanent")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestComputeBackoff_Grows(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Minute,
		Multiplier:     2.0,
		JitterFraction: -1,
	})

	assert.Equal(t, 100*time.Millisecond, computeBackoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, computeBackoff(1, cfg))
	assert.Equal(t, 400*time.Millisecond, computeBackoff(2, cfg))
}

func TestComputeBackoff_CapsAtMax(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     2 * time.Second,
		Multiplier:     10,
		JitterFraction: -1,
	})

	assert.Equal(t, 2*time.Second, computeBackoff(5, cfg))
}

func TestComputeBackoff_JitterStaysInRange(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		Multiplier:     1,
		JitterFraction: 0.5,
	})

	for range 100 {
		d := computeBackoff(0, cfg)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}
