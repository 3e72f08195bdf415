package storage

import (
	"database/sql"
	"fmt"
	"time"

	"media-transcriber/models"
	"media-transcriber/utils"
)

type TaskStore struct {
	db *Database
}

func NewTaskStore(db *Database) *TaskStore {
	return &TaskStore{db: db}
}

// Save upserts the record so callers can mirror every state change with
// a single call, whether or not the task has been persisted before.
func (ts *TaskStore) Save(rec *models.TaskRecord) error {
	completedAt := rec.CompletedAt
	if completedAt == nil && rec.Status.IsTerminal() {
		now := time.Now()
		completedAt = &now
	}

	query := `
		INSERT INTO tasks (id, url, title, status, error_message, video_dir, word_count, detected_language, merged_path, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			status = excluded.status,
			error_message = excluded.error_message,
			video_dir = excluded.video_dir,
			word_count = excluded.word_count,
			detected_language = excluded.detected_language,
			merged_path = excluded.merged_path,
			updated_at = excluded.updated_at,
			completed_at = excluded.completed_at
	`
	_, err := ts.db.DB().Exec(query,
		rec.ID, rec.URL, rec.Title, rec.Status, rec.ErrorMessage, rec.VideoDir,
		rec.WordCount, rec.DetectedLanguage, rec.MergedPath,
		rec.CreatedAt, rec.UpdatedAt, completedAt)

	if err != nil {
		return fmt.Errorf("failed to save task record: %w", err)
	}
	return nil
}

func (ts *TaskStore) UpdateStatus(id string, status models.TaskStatus, errorMessage string) error {
	now := time.Now()
	var completedAt *time.Time
	if status.IsTerminal() {
		completedAt = &now
	}

	query := `
		UPDATE tasks
		SET status = ?, error_message = ?, updated_at = ?, completed_at = ?
		WHERE id = ?
	`
	result, err := ts.db.DB().Exec(query, status, errorMessage, now, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return utils.ErrTaskNotFound
	}
	return nil
}

func (ts *TaskStore) GetByID(id string) (*models.TaskRecord, error) {
	query := selectColumns + ` FROM tasks WHERE id = ?`
	rec, err := scanRecord(ts.db.DB().QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task record: %w", err)
	}
	return rec, nil
}

func (ts *TaskStore) GetByStatus(status models.TaskStatus) ([]*models.TaskRecord, error) {
	query := selectColumns + ` FROM tasks WHERE status = ? ORDER BY created_at`
	rows, err := ts.db.DB().Query(query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks by status: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// GetIncomplete returns every record left in a non-terminal state,
// typically by an unclean shutdown.
func (ts *TaskStore) GetIncomplete() ([]*models.TaskRecord, error) {
	query := selectColumns + ` FROM tasks WHERE status NOT IN (?, ?, ?) ORDER BY created_at`
	rows, err := ts.db.DB().Query(query,
		models.TaskStatusCompleted, models.TaskStatusFailed, models.TaskStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to query incomplete tasks: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (ts *TaskStore) List(limit int) ([]*models.TaskRecord, error) {
	query := selectColumns + ` FROM tasks ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := ts.db.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list task records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (ts *TaskStore) GetStats() (map[string]int, error) {
	rows, err := ts.db.DB().Query(`SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to get task stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

const selectColumns = `
	SELECT id, url, title, status, error_message, video_dir, word_count, detected_language, merged_path, created_at, updated_at, completed_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.TaskRecord, error) {
	rec := &models.TaskRecord{}
	err := row.Scan(&rec.ID, &rec.URL, &rec.Title, &rec.Status, &rec.ErrorMessage,
		&rec.VideoDir, &rec.WordCount, &rec.DetectedLanguage, &rec.MergedPath,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.CompletedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func collectRecords(rows *sql.Rows) ([]*models.TaskRecord, error) {
	var records []*models.TaskRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
