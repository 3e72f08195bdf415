package models

// TaskStatus tracks each pipeline stage for a single transcription task.
type TaskStatus string

const (
	TaskStatusPending      TaskStatus = "PENDING"
	TaskStatusDownloading  TaskStatus = "DOWNLOADING"
	TaskStatusSplitting    TaskStatus = "SPLITTING"
	TaskStatusTranscribing TaskStatus = "TRANSCRIBING"
	TaskStatusCompleted    TaskStatus = "COMPLETED"
	TaskStatusFailed       TaskStatus = "FAILED"
	TaskStatusCancelled    TaskStatus = "CANCELLED"
	TaskStatusPaused       TaskStatus = "PAUSED"
)

// String returns the string representation of TaskStatus.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the status ends a processing pass.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// IsResumable reports whether a task in this status may be re-queued.
func (s TaskStatus) IsResumable() bool {
	return s == TaskStatusFailed || s == TaskStatusCancelled || s == TaskStatusPaused
}

// IsActive reports whether a worker currently owns the task.
func (s TaskStatus) IsActive() bool {
	return s == TaskStatusDownloading || s == TaskStatusSplitting || s == TaskStatusTranscribing
}
