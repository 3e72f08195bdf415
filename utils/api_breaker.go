package utils

import (
	"sync"
	"time"
)

// BreakerState represents the current state of an APIBreaker
type BreakerState string

const (
	StateClosed   BreakerState = "closed"    // Normal operation
	StateOpen     BreakerState = "open"      // Rejecting calls
	StateHalfOpen BreakerState = "half_open" // Testing if the API has recovered
)

// APIBreakerConfig holds configuration for an APIBreaker
type APIBreakerConfig struct {
	// Consecutive failures before opening the breaker
	FailureThreshold int

	// How long to wait before attempting a probe call
	RecoveryTimeout time.Duration

	// Maximum number of probe calls in half-open state
	HalfOpenMaxCalls int
}

// DefaultAPIBreakerConfig returns a sensible default configuration
func DefaultAPIBreakerConfig() *APIBreakerConfig {
	return &APIBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenMaxCalls: 2,
	}
}

// APIBreaker shields the transcription API from hammering while it is
// down. An open breaker reports the remaining recovery time through a
// RetryAfterError, so callers back off instead of failing outright.
type APIBreaker struct {
	name   string
	config *APIBreakerConfig
	logger *Logger

	mutex         sync.Mutex
	state         BreakerState
	failures      int
	lastFailure   time.Time
	halfOpenCalls int

	totalCalls    int64
	totalFailures int64
}

// NewAPIBreaker creates a breaker with the given configuration
func NewAPIBreaker(name string, config *APIBreakerConfig, logger *Logger) *APIBreaker {
	if config == nil {
		config = DefaultAPIBreakerConfig()
	}
	return &APIBreaker{
		name:   name,
		config: config,
		logger: logger,
		state:  StateClosed,
	}
}

// Allow reports whether a call may proceed. When the breaker is open it
// returns a RetryAfterError carrying the remaining recovery timeout.
func (b *APIBreaker) Allow() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.totalCalls++

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		remaining := b.config.RecoveryTimeout - time.Since(b.lastFailure)
		if remaining > 0 {
			b.logger.WithField("breaker", b.name).
				WithField("retry_in", remaining.Round(time.Second)).
				Debug("Breaker rejected call")
			return &RetryAfterError{After: remaining, Cause: ErrAPIUnavailable}
		}
		b.transitionTo(StateHalfOpen)
		b.halfOpenCalls = 1
		return nil

	case StateHalfOpen:
		if b.halfOpenCalls < b.config.HalfOpenMaxCalls {
			b.halfOpenCalls++
			return nil
		}
		return &RetryAfterError{After: b.config.RecoveryTimeout, Cause: ErrAPIUnavailable}

	default:
		return ErrAPIUnavailable
	}
}

// RecordSuccess closes the breaker after a successful call.
func (b *APIBreaker) RecordSuccess() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.failures = 0
	if b.state != StateClosed {
		b.transitionTo(StateClosed)
	}
}

// RecordFailure counts a failed call; the breaker opens once the
// consecutive failure threshold is reached. A failed probe reopens it
// immediately.
func (b *APIBreaker) RecordFailure() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.totalFailures++
	b.failures++
	b.lastFailure = time.Now()

	switch b.state {
	case StateClosed:
		if b.failures >= b.config.FailureThreshold {
			b.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		b.transitionTo(StateOpen)
	}
}

// State returns the current breaker state
func (b *APIBreaker) State() BreakerState {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state
}

// transitionTo changes state; caller holds the mutex.
func (b *APIBreaker) transitionTo(newState BreakerState) {
	oldState := b.state
	b.state = newState
	if newState != StateOpen {
		b.halfOpenCalls = 0
	}

	b.logger.WithField("breaker", b.name).
		WithField("old_state", oldState).
		WithField("new_state", newState).
		WithField("total_calls", b.totalCalls).
		WithField("total_failures", b.totalFailures).
		Info("Breaker state transition")
}
