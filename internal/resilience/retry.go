package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig shapes the exponential backoff applied to external fetches.
// Zero values fall back to the defaults at call time, so a partially filled
// struct is safe to pass.
type RetryConfig struct {
	// MaxAttempts counts the first try, so 1 disables retries. Default 3.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry. Default 500ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the grown delay. Default 30s.
	MaxBackoff time.Duration

	// Multiplier grows the delay between attempts. Default 2.0.
	Multiplier float64

	// JitterFraction spreads each delay by ±fraction to keep concurrent
	// company workers from hammering a recovering feed in lockstep.
	// Default 0.25.
	JitterFraction float64

	// ShouldRetry decides whether an error is worth another attempt.
	// Nil means IsTransient.
	ShouldRetry func(err error) bool

	// OnRetry, if set, runs before each backoff sleep.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig is the policy used when the config file has no
// resilience section.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

// DoVal runs fn until it succeeds, the error is permanent, attempts run out,
// or ctx is done. On failure it returns the zero value and the last error.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = applyDefaults(cfg)

	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldRetry(lastErr) {
			return zero, lastErr
		}

		// No sleep after the final attempt.
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr)
		}

		if !sleepBackoff(ctx, computeBackoff(attempt, cfg)) {
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// sleepBackoff waits for d, reporting false if ctx expired first.
func sleepBackoff(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	return cfg
}

func computeBackoff(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt))
	delay = math.Min(delay, float64(cfg.MaxBackoff))

	if cfg.JitterFraction > 0 {
		spread := delay * cfg.JitterFraction
		delay += (rand.Float64()*2 - 1) * spread
	}

	return time.Duration(math.Max(delay, 0))
}
