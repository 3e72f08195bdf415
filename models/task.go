package models

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task represents one end-to-end transcription job for a single source
// URL. All mutable fields are guarded by the task's own lock: the
// owning worker mutates them and any other goroutine (display, tests)
// reads them through the guarded accessors.
type Task struct {
	id        string
	url       string
	createdAt time.Time

	mu            sync.Mutex
	title         string
	status        TaskStatus
	errMsg        string
	stats         TaskStats
	video         *VideoMetadata
	download      *DownloadResult
	split         *SplitResult
	transcribe    *TranscribeResult
	merged        *MergedTranscript
	transcription TranscriptionMetadata
}

// NewTask creates a PENDING task for the given URL.
func NewTask(url string) *Task {
	return &Task{
		id:        uuid.New().String(),
		url:       url,
		createdAt: time.Now(),
		status:    TaskStatusPending,
	}
}

func (t *Task) ID() string           { return t.id }
func (t *Task) URL() string          { return t.url }
func (t *Task) CreatedAt() time.Time { return t.createdAt }

func (t *Task) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Task) SetStatus(status TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
}

// Fail records the failure message and moves the task to FAILED in one
// critical section. A later failure overwrites an earlier message.
func (t *Task) Fail(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errMsg = msg
	t.status = TaskStatusFailed
}

func (t *Task) Error() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errMsg
}

// Cancelled reports whether cancellation has been requested. Workers
// check it at safe points; a stage already in flight is not
// interrupted.
func (t *Task) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status == TaskStatusCancelled
}

// CanResume reports whether the task is in a resumable state.
func (t *Task) CanResume() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status.IsResumable()
}

// BeginResume moves a resumable task back to PENDING and clears its
// error in one critical section, so two concurrent resume attempts
// cannot both re-enqueue the task. It returns the prior status and
// whether the transition happened.
func (t *Task) BeginResume() (TaskStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.status.IsResumable() {
		return t.status, false
	}
	previous := t.status
	t.errMsg = ""
	t.status = TaskStatusPending
	return previous, true
}

func (t *Task) Title() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.title
}

func (t *Task) SetTitle(title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.title = title
}

// UpdateProgress refreshes the byte counters and derives progress.
func (t *Task) UpdateProgress(total, downloaded int64, speed, etaSeconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.TotalBytes = total
	t.stats.DownloadedBytes = downloaded
	t.stats.Speed = speed
	t.stats.ETASeconds = etaSeconds
	t.stats.recompute()
}

// FinishProgress pins progress to 100 once the download completes.
func (t *Task) FinishProgress() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.DownloadedBytes = t.stats.TotalBytes
	t.stats.Progress = 100
	t.stats.Speed = 0
	t.stats.ETASeconds = 0
}

func (t *Task) Stats() TaskStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// SetVideo records provider metadata. Write-once: later calls are
// ignored.
func (t *Task) SetVideo(v *VideoMetadata) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.video == nil {
		t.video = v
	}
}

func (t *Task) Video() *VideoMetadata {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.video
}

func (t *Task) SetDownload(r *DownloadResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.download = r
}

func (t *Task) Download() *DownloadResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.download
}

func (t *Task) SetSplit(r *SplitResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.split = r
}

func (t *Task) Split() *SplitResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.split
}

func (t *Task) SetTranscribe(r *TranscribeResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transcribe = r
	t.transcription.WordCount = r.WordCount
	t.transcription.DetectedLanguage = r.DetectedLanguage
}

func (t *Task) Transcribe() *TranscribeResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transcribe
}

func (t *Task) SetMerged(r *MergedTranscript) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.merged = r
	t.transcription.WordCount = r.TotalWords
	// The JSON artifact is the canonical one; its .txt sibling shares
	// the same stem.
	t.transcription.MergedTranscriptPath = r.JSONPath
}

func (t *Task) Merged() *MergedTranscript {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.merged
}

func (t *Task) Transcription() TranscriptionMetadata {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transcription
}

// Snapshot is a point-in-time copy of the displayable task state.
type Snapshot struct {
	ID        string
	URL       string
	Title     string
	Status    TaskStatus
	Error     string
	Stats     TaskStats
	Words     int
	Language  string
	Merged    string
	CreatedAt time.Time
}

// Snapshot copies the displayable fields under the task lock.
func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		ID:        t.id,
		URL:       t.url,
		Title:     t.title,
		Status:    t.status,
		Error:     t.errMsg,
		Stats:     t.stats,
		Words:     t.transcription.WordCount,
		Language:  t.transcription.DetectedLanguage,
		Merged:    t.transcription.MergedTranscriptPath,
		CreatedAt: t.createdAt,
	}
}
