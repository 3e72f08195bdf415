package storage

import (
	"fmt"

	"media-transcriber/models"
	"media-transcriber/utils"
)

// RecoveryService reconciles the task table after a restart. Live tasks
// exist only in process memory, so any record still in a non-terminal
// state belongs to a run that never finished; those are marked failed so
// the operator can resume them explicitly.
type RecoveryService struct {
	taskStore *TaskStore
	logger    *utils.Logger
}

func NewRecoveryService(taskStore *TaskStore, logger *utils.Logger) *RecoveryService {
	return &RecoveryService{
		taskStore: taskStore,
		logger:    logger,
	}
}

func (rs *RecoveryService) RecoverIncompleteTasks() error {
	log := rs.logger.WithComponent("recovery")
	log.Info("Checking for tasks interrupted by a previous shutdown")

	incomplete, err := rs.taskStore.GetIncomplete()
	if err != nil {
		return fmt.Errorf("failed to get incomplete tasks: %w", err)
	}

	if len(incomplete) == 0 {
		log.Info("No interrupted tasks found")
		return nil
	}

	log.WithField("interrupted_tasks", len(incomplete)).
		Info("Found interrupted tasks, marking them failed")

	markedCount := 0
	for _, rec := range incomplete {
		log.WithField("task_id", rec.ID).
			WithField("status", rec.Status).
			WithField("url", rec.URL).
			Info("Marking interrupted task as failed")

		msg := fmt.Sprintf("interrupted by shutdown while %s", rec.Status)
		if err := rs.taskStore.UpdateStatus(rec.ID, models.TaskStatusFailed, msg); err != nil {
			log.WithField("task_id", rec.ID).
				WithError(err).
				Error("Failed to mark interrupted task")
			continue
		}
		markedCount++
	}

	log.WithField("marked", markedCount).
		WithField("total", len(incomplete)).
		Info("Startup recovery completed")

	return nil
}
