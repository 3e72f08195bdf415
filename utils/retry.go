package utils

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	UseJitter       bool
	JitterFactor    float64
	RetryableErrors []string
}

type RetryService struct {
	config *RetryConfig
	logger *Logger
}

func NewRetryService(logger *Logger) *RetryService {
	return &RetryService{
		config: &RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  time.Second,
			MaxDelay:      30 * time.Second,
			BackoffFactor: 2.0,
			UseJitter:     true,
			JitterFactor:  0.1,
			RetryableErrors: []string{
				"network error",
				"timeout",
				"connection reset",
				"connection refused",
				"temporary failure",
				"service unavailable",
				"internal server error",
				"bad gateway",
			},
		},
		logger: logger,
	}
}

func (rs *RetryService) WithConfig(config *RetryConfig) *RetryService {
	rs.config = config
	return rs
}

// Execute runs the operation, retrying transient failures with
// exponential backoff. A RetryAfterError overrides the backoff delay
// with the server-provided hint.
func (rs *RetryService) Execute(ctx context.Context, operation func() error, description string) error {
	var lastErr error

	for attempt := 1; attempt <= rs.config.MaxAttempts; attempt++ {
		err := operation()
		if err == nil {
			if attempt > 1 {
				rs.logger.WithField("attempt", attempt).
					WithField("operation", description).
					Info("Operation succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if !rs.isRetryable(err) {
			return fmt.Errorf("non-retryable error in %s: %w", description, err)
		}

		if attempt == rs.config.MaxAttempts {
			break
		}

		delay := rs.calculateDelay(attempt)
		var retryAfter *RetryAfterError
		if errors.As(err, &retryAfter) && retryAfter.After > delay {
			delay = retryAfter.After
		}

		rs.logger.WithField("attempt", attempt).
			WithField("delay", delay).
			WithField("operation", description).
			WithError(err).
			Warn("Operation failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("operation %s failed after %d attempts: %w", description, rs.config.MaxAttempts, lastErr)
}

func (rs *RetryService) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryAfter *RetryAfterError
	if errors.As(err, &retryAfter) {
		return true
	}

	errorText := strings.ToLower(err.Error())
	for _, pattern := range rs.config.RetryableErrors {
		if strings.Contains(errorText, pattern) {
			return true
		}
	}
	return false
}

func (rs *RetryService) calculateDelay(attempt int) time.Duration {
	delay := float64(rs.config.InitialDelay) * math.Pow(rs.config.BackoffFactor, float64(attempt-1))
	if delay > float64(rs.config.MaxDelay) {
		delay = float64(rs.config.MaxDelay)
	}
	if rs.config.UseJitter {
		jitter := delay * rs.config.JitterFactor * rand.Float64()
		delay += jitter
	}
	return time.Duration(delay)
}
