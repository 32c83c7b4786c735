// Package resilience carries the retry, circuit breaker, and dead letter
// plumbing shared by the ingestion pipeline's external calls.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// CircuitState is the breaker's position.
type CircuitState int

const (
	// CircuitClosed lets calls through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until the reset timeout elapses.
	CircuitOpen
	// CircuitHalfOpen lets probe calls through to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned for calls rejected while the breaker is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreakerConfig tunes a CircuitBreaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is how many consecutive failures open the breaker.
	// Default 5.
	FailureThreshold int

	// ResetTimeout is how long the breaker stays open before admitting a
	// probe. Default 30s.
	ResetTimeout time.Duration

	// HalfOpenMaxProbes is how many probes must succeed before the breaker
	// closes again. Default 1.
	HalfOpenMaxProbes int

	// ShouldTrip decides which errors count toward the threshold. Nil means
	// every non-nil error counts.
	ShouldTrip func(err error) bool

	// OnStateChange fires on every transition.
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig is used when the config file has no
// resilience section.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:  5,
		ResetTimeout:      30 * time.Second,
		HalfOpenMaxProbes: 1,
	}
}

// CircuitBreaker guards one downstream service. It trips after
// FailureThreshold consecutive failures and admits a probe once
// ResetTimeout has passed.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu             sync.Mutex
	state          CircuitState
	failures       int
	lastFailure    time.Time
	probeSuccesses int

	now func() time.Time
}

// NewCircuitBreaker builds a closed breaker, filling zero config fields
// with defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenMaxProbes <= 0 {
		cfg.HalfOpenMaxProbes = def.HalfOpenMaxProbes
	}
	return &CircuitBreaker{
		cfg:   cfg,
		state: CircuitClosed,
		now:   time.Now,
	}
}

// ExecuteVal runs fn through the breaker, returning ErrCircuitOpen without
// calling fn when the breaker is open.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := cb.admit(); err != nil {
		return zero, err
	}

	val, err := fn(ctx)
	cb.record(err)
	return val, err
}

// State reports the breaker's position, accounting for an elapsed reset
// timeout on an open breaker.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && cb.now().Sub(cb.lastFailure) >= cb.cfg.ResetTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) < cb.cfg.ResetTimeout {
			return ErrCircuitOpen
		}
		// Timeout elapsed, admit this call as a probe.
		cb.transition(CircuitHalfOpen)
		return nil
	default:
		// Closed and half-open both admit.
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	counts := cb.cfg.ShouldTrip
	if counts == nil {
		counts = func(e error) bool { return e != nil }
	}

	if err == nil || !counts(err) {
		switch cb.state {
		case CircuitHalfOpen:
			cb.probeSuccesses++
			if cb.probeSuccesses >= cb.cfg.HalfOpenMaxProbes {
				cb.transition(CircuitClosed)
				cb.failures = 0
				cb.probeSuccesses = 0
			}
		case CircuitClosed:
			cb.failures = 0
		}
		return
	}

	cb.failures++
	cb.lastFailure = cb.now()

	switch cb.state {
	case CircuitClosed:
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		// A failed probe reopens immediately.
		cb.transition(CircuitOpen)
		cb.probeSuccesses = 0
	}
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}
