package utils

import (
	"context"
	"sync"
	"time"
)

// RateLimitConfig bounds transcription API usage to a fixed request
// quota per rolling time window.
type RateLimitConfig struct {
	Window   time.Duration
	Requests int
}

// DefaultRateLimitConfig returns default configuration
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		Window:   time.Minute,
		Requests: 20,
	}
}

// RequestLimiter is shared across all transcription calls. A caller
// exceeding the quota waits out the remainder of the window instead of
// failing. The clock and sleep functions are injectable so the limiter
// is testable with a fake clock.
type RequestLimiter struct {
	config *RateLimitConfig
	logger *Logger

	mutex       sync.Mutex
	windowStart time.Time
	count       int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRequestLimiter creates a limiter over the real clock.
func NewRequestLimiter(config *RateLimitConfig, logger *Logger) *RequestLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	return &RequestLimiter{
		config: config,
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// WithClock replaces the clock and sleep functions. Test hook.
func (rl *RequestLimiter) WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) *RequestLimiter {
	rl.now = now
	rl.sleep = sleep
	return rl
}

// Wait blocks until the caller may issue one request under the quota,
// or the context is cancelled.
func (rl *RequestLimiter) Wait(ctx context.Context) error {
	for {
		rl.mutex.Lock()
		now := rl.now()

		if rl.windowStart.IsZero() || now.Sub(rl.windowStart) >= rl.config.Window {
			rl.windowStart = now
			rl.count = 0
		}

		if rl.count < rl.config.Requests {
			rl.count++
			rl.mutex.Unlock()
			return nil
		}

		remaining := rl.windowStart.Add(rl.config.Window).Sub(now)
		rl.mutex.Unlock()

		rl.logger.WithField("wait", remaining).
			WithField("quota", rl.config.Requests).
			Debug("Request quota exhausted, waiting for window to roll")

		if err := rl.sleep(ctx, remaining); err != nil {
			return err
		}
	}
}

// Usage returns the request count consumed in the current window.
func (rl *RequestLimiter) Usage() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	if rl.now().Sub(rl.windowStart) >= rl.config.Window {
		return 0
	}
	return rl.count
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
