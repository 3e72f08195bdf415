package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"media-transcriber/models"
	"media-transcriber/storage"
	"media-transcriber/utils"
	"media-transcriber/workers"
)

const (
	defaultPullTimeout = 1 * time.Second
	defaultJoinTimeout = 2 * time.Second
)

// Manager owns the task registry and the fixed worker pool that drives
// every task through download, split, transcribe and merge.
type Manager struct {
	config *utils.Config
	logger *utils.Logger
	store  *storage.TaskStore

	downloader  workers.Downloader
	splitter    workers.Splitter
	transcriber workers.Transcriber

	mutex   sync.Mutex
	tasks   []*models.Task
	byID    map[string]*models.Task
	started bool
	stopped bool

	queue   chan *models.Task
	stop    chan struct{}
	pending sync.WaitGroup
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	pullTimeout time.Duration
	joinTimeout time.Duration
}

// NewManager wires the stage processors into a manager. The store may be
// nil, in which case task records are kept in memory only.
func NewManager(config *utils.Config, logger *utils.Logger, store *storage.TaskStore,
	downloader workers.Downloader, splitter workers.Splitter, transcriber workers.Transcriber) *Manager {

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		config:      config,
		logger:      logger,
		store:       store,
		downloader:  downloader,
		splitter:    splitter,
		transcriber: transcriber,
		byID:        make(map[string]*models.Task),
		queue:       make(chan *models.Task, config.MaxQueueSize),
		stop:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		pullTimeout: defaultPullTimeout,
		joinTimeout: defaultJoinTimeout,
	}
}

// SetTimeouts overrides the queue pull timeout and the shutdown join
// timeout. Intended for tests.
func (m *Manager) SetTimeouts(pull, join time.Duration) {
	m.pullTimeout = pull
	m.joinTimeout = join
}

// Start launches the worker pool. Calling it more than once is a no-op.
func (m *Manager) Start() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.started || m.stopped {
		return
	}
	m.started = true

	for i := 1; i <= m.config.MaxWorkers; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}
	m.logger.WithField("workers", m.config.MaxWorkers).Info("Worker pool started")
}

// AddTask registers a new task for the given URL and enqueues it.
// Rejections come back as ErrEmptyURL, ErrShuttingDown, ErrTaskExists
// or ErrQueueFull; a rejected task leaves no trace in the registry.
func (m *Manager) AddTask(url string) (*models.Task, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		m.logger.Warn("Rejected task with empty URL")
		return nil, utils.ErrEmptyURL
	}

	m.mutex.Lock()
	if m.stopped {
		m.mutex.Unlock()
		m.logger.Warn("Rejected task: manager is shutting down")
		return nil, utils.ErrShuttingDown
	}
	for _, existing := range m.tasks {
		if existing.URL() == url {
			m.mutex.Unlock()
			m.logger.WithField("url", url).Warn("Rejected duplicate task URL")
			return nil, utils.ErrTaskExists
		}
	}
	task := models.NewTask(url)
	m.tasks = append(m.tasks, task)
	m.byID[task.ID()] = task
	m.mutex.Unlock()

	m.pending.Add(1)
	select {
	case m.queue <- task:
	default:
		m.pending.Done()
		m.mutex.Lock()
		m.unregister(task)
		m.mutex.Unlock()
		m.logger.WithField("url", url).Warn("Rejected task: queue is full")
		return nil, utils.ErrQueueFull
	}

	m.persist(task)
	m.logger.WithTaskID(task.ID()).WithField("url", url).Info("Task queued")
	return task, nil
}

// ResumeTask re-enqueues a failed, cancelled or paused task. Tasks in
// any other state come back as ErrNotResumable and are left untouched.
func (m *Manager) ResumeTask(task *models.Task) error {
	if task == nil {
		return utils.ErrTaskNotFound
	}

	m.mutex.Lock()
	if m.stopped {
		m.mutex.Unlock()
		m.logger.Warn("Cannot resume: manager is shutting down")
		return utils.ErrShuttingDown
	}
	m.mutex.Unlock()

	previous, ok := task.BeginResume()
	if !ok {
		m.logger.WithTaskID(task.ID()).WithField("status", previous).
			Warn("Task is not resumable")
		return utils.ErrNotResumable
	}

	m.pending.Add(1)
	select {
	case m.queue <- task:
	default:
		m.pending.Done()
		task.SetStatus(previous)
		m.logger.WithTaskID(task.ID()).Warn("Cannot resume: queue is full")
		return utils.ErrQueueFull
	}

	m.persist(task)
	m.logger.WithTaskID(task.ID()).Info("Task re-queued")
	return nil
}

// CancelTask flags a non-terminal task as cancelled. Workers observe the
// flag at the next safe point; work already in flight is not interrupted.
func (m *Manager) CancelTask(id string) bool {
	task := m.TaskByID(id)
	if task == nil {
		return false
	}
	if task.Status().IsTerminal() {
		return false
	}
	task.SetStatus(models.TaskStatusCancelled)
	m.persist(task)
	m.logger.WithTaskID(task.ID()).Info("Task cancelled")
	return true
}

// PauseTask parks a non-terminal task. Workers stop advancing it at the
// next stage boundary; resume re-queues it from the start.
func (m *Manager) PauseTask(id string) bool {
	task := m.TaskByID(id)
	if task == nil {
		return false
	}
	if task.Status().IsTerminal() {
		return false
	}
	task.SetStatus(models.TaskStatusPaused)
	m.persist(task)
	m.logger.WithTaskID(task.ID()).Info("Task paused")
	return true
}

// Shutdown drains the queue, waits for in-flight tasks to finish and then
// joins the workers. A worker that fails to terminate within the join
// timeout is reported, not forcibly killed.
func (m *Manager) Shutdown() {
	m.mutex.Lock()
	if m.stopped {
		m.mutex.Unlock()
		return
	}
	m.stopped = true
	started := m.started
	m.mutex.Unlock()

	close(m.stop)
	if !started {
		return
	}

	m.logger.Info("Shutting down: waiting for queued tasks to finish")
	m.pending.Wait()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.logger.Info("All workers terminated")
	case <-time.After(m.joinTimeout):
		m.logger.Warn("Some workers did not terminate within the join timeout")
		m.cancel()
	}
}

// Tasks returns a snapshot of every registered task in insertion order.
func (m *Manager) Tasks() []*models.Task {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	out := make([]*models.Task, len(m.tasks))
	copy(out, m.tasks)
	return out
}

// TaskByID looks up a registered task, returning nil when unknown.
func (m *Manager) TaskByID(id string) *models.Task {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.byID[id]
}

// QueueDepth reports the number of tasks waiting for a worker.
func (m *Manager) QueueDepth() int {
	return len(m.queue)
}

// unregister removes a task from the registry. Caller holds the mutex.
func (m *Manager) unregister(task *models.Task) {
	delete(m.byID, task.ID())
	for i, t := range m.tasks {
		if t == task {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			break
		}
	}
}

func (m *Manager) worker(id int) {
	defer m.wg.Done()
	log := m.logger.WithComponent("worker").WithField("worker_id", id)
	log.Debug("Worker started")

	for {
		select {
		case task := <-m.queue:
			m.runTask(task)
			m.pending.Done()
		case <-time.After(m.pullTimeout):
			select {
			case <-m.stop:
				if len(m.queue) == 0 {
					log.Debug("Worker exiting")
					return
				}
			default:
			}
		}
	}
}

// runTask shields the worker loop from panics in stage processors; a
// panicking task is marked failed and the worker keeps serving the queue.
func (m *Manager) runTask(task *models.Task) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.WithTaskID(task.ID()).Errorf("Task panicked: %v", r)
			task.Fail(fmt.Sprintf("unexpected error: %v", r))
			m.persist(task)
		}
	}()
	m.process(task)
}

func (m *Manager) process(task *models.Task) {
	log := m.logger.WithTaskID(task.ID())

	type stage struct {
		name   string
		status models.TaskStatus
		run    func(context.Context, *models.Task) error
	}
	stages := []stage{
		{"download", models.TaskStatusDownloading, m.downloader.Download},
		{"split", models.TaskStatusSplitting, m.splitter.Split},
		{"transcribe", models.TaskStatusTranscribing, m.transcriber.TranscribeAll},
		{"merge", models.TaskStatusTranscribing, m.transcriber.Merge},
	}

	for _, s := range stages {
		if task.Cancelled() {
			log.Info("Task cancelled before stage " + s.name)
			m.persist(task)
			return
		}
		if task.Status() == models.TaskStatusPaused {
			log.Info("Task paused before stage " + s.name)
			m.persist(task)
			return
		}
		task.SetStatus(s.status)
		m.persist(task)

		start := time.Now()
		if err := s.run(m.ctx, task); err != nil {
			if errors.Is(err, utils.ErrTaskCancelled) {
				log.WithField("stage", s.name).Info("Task cancelled mid-stage")
				task.SetStatus(models.TaskStatusCancelled)
			} else {
				log.WithField("stage", s.name).WithField("error", err).Error("Stage failed")
				task.Fail(utils.NewStageError(s.name, err).Error())
			}
			m.persist(task)
			return
		}
		log.WithField("stage", s.name).WithField("elapsed", time.Since(start).Round(time.Millisecond)).
			Info("Stage completed")
	}

	task.SetStatus(models.TaskStatusCompleted)
	m.persist(task)
	log.WithField("title", task.Title()).Info("Task completed")
}

// persist mirrors the task record into the store when one is configured.
func (m *Manager) persist(task *models.Task) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(task.Record()); err != nil {
		m.logger.WithTaskID(task.ID()).WithField("error", err).Warn("Failed to persist task record")
	}
}
