package models

import "time"

// TaskRecord is the persisted snapshot of a task, mirrored to the
// sqlite store on admission and on every status change. Live tasks are
// tracked in memory; records survive restarts for history and
// recovery.
type TaskRecord struct {
	ID               string     `db:"id" json:"id"`
	URL              string     `db:"url" json:"url"`
	Title            string     `db:"title" json:"title"`
	Status           TaskStatus `db:"status" json:"status"`
	ErrorMessage     string     `db:"error_message" json:"error_message,omitempty"`
	VideoDir         string     `db:"video_dir" json:"video_dir,omitempty"`
	WordCount        int        `db:"word_count" json:"word_count"`
	DetectedLanguage string     `db:"detected_language" json:"detected_language,omitempty"`
	MergedPath       string     `db:"merged_path" json:"merged_path,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// Record builds a persisted snapshot from the live task.
func (t *Task) Record() *TaskRecord {
	snap := t.Snapshot()
	rec := &TaskRecord{
		ID:               snap.ID,
		URL:              snap.URL,
		Title:            snap.Title,
		Status:           snap.Status,
		ErrorMessage:     snap.Error,
		WordCount:        snap.Words,
		DetectedLanguage: snap.Language,
		MergedPath:       snap.Merged,
		CreatedAt:        snap.CreatedAt,
		UpdatedAt:        time.Now(),
	}
	if dl := t.Download(); dl != nil {
		rec.VideoDir = dl.VideoDir
	}
	return rec
}
