package utils

import (
	"errors"
	"testing"
	"time"
)

func newTestBreaker(threshold int, recovery time.Duration) *APIBreaker {
	return NewAPIBreaker("test-api", &APIBreakerConfig{
		FailureThreshold: threshold,
		RecoveryTimeout:  recovery,
		HalfOpenMaxCalls: 1,
	}, NewTestLogger())
}

func TestAPIBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := newTestBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("Allow() %d rejected while closed: %v", i, err)
		}
		b.RecordFailure()
	}

	if b.State() != StateOpen {
		t.Fatalf("state = %s, expected open after 3 failures", b.State())
	}

	err := b.Allow()
	if err == nil {
		t.Fatal("open breaker should reject calls")
	}
	var retryAfter *RetryAfterError
	if !errors.As(err, &retryAfter) {
		t.Errorf("open breaker error = %T, expected a RetryAfterError hint", err)
	}
	if !errors.Is(err, ErrAPIUnavailable) {
		t.Errorf("open breaker error should wrap ErrAPIUnavailable, got %v", err)
	}
}

func TestAPIBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := newTestBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if b.State() != StateClosed {
		t.Errorf("state = %s, a success must reset the consecutive count", b.State())
	}
}

func TestAPIBreaker_RecoversThroughHalfOpen(t *testing.T) {
	b := newTestBreaker(1, 10*time.Millisecond)

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("state = %s, expected open", b.State())
	}

	time.Sleep(20 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Fatalf("probe call rejected after recovery timeout: %v", err)
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("state = %s, expected half-open during the probe", b.State())
	}

	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Errorf("state = %s, a successful probe must close the breaker", b.State())
	}
}

func TestAPIBreaker_FailedProbeReopens(t *testing.T) {
	b := newTestBreaker(1, 10*time.Millisecond)

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Fatalf("probe call rejected: %v", err)
	}
	b.RecordFailure()

	if b.State() != StateOpen {
		t.Errorf("state = %s, a failed probe must reopen the breaker", b.State())
	}
}
