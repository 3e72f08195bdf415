package utils

import (
	"errors"
	"fmt"
	"time"
)

// Predefined error types for common scenarios
var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrTaskExists      = errors.New("task already exists")
	ErrQueueFull       = errors.New("task queue is full")
	ErrEmptyURL        = errors.New("invalid or empty URL")
	ErrNotResumable    = errors.New("task is not in a resumable state")
	ErrNoChunks        = errors.New("no chunks were created during audio splitting")
	ErrNothingToMerge  = errors.New("no transcription text found to merge")
	ErrPayloadTooLarge = errors.New("chunk payload exceeds API size limit")
	ErrShuttingDown    = errors.New("manager is shutting down")
	ErrTaskCancelled   = errors.New("task cancelled")
	ErrAPIUnavailable  = errors.New("transcription API unavailable")
)

// RetryAfterError signals that the remote API asked us to back off for
// a specific duration (HTTP 429 with a Retry-After hint). Callers must
// honor the hint instead of their own backoff schedule.
type RetryAfterError struct {
	After time.Duration
	Cause error
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s: %v", e.After, e.Cause)
}

func (e *RetryAfterError) Unwrap() error {
	return e.Cause
}

// NewStageError wraps a stage failure with the stage name so the task
// error message names its origin.
func NewStageError(stage string, err error) error {
	return fmt.Errorf("%s stage: %w", stage, err)
}
