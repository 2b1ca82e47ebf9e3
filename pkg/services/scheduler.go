package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrydata/sync-engine/pkg/models"
	"github.com/quarrydata/sync-engine/pkg/repositories"
)

// Scheduler polls the task table and fires each task in the minute its
// recurrence matches. A task fires at most once per matching minute, and a
// firing is skipped while the previous run of the same task is still going.
type Scheduler struct {
	taskRepo     repositories.SyncTaskRepository
	syncSvc      SyncService
	logger       *zap.Logger
	pollInterval time.Duration

	// now is replaceable in tests.
	now func() time.Time

	mu        sync.Mutex
	running   map[uuid.UUID]bool
	lastFired map[uuid.UUID]time.Time

	wg sync.WaitGroup
}

// NewScheduler creates a scheduler. pollSeconds must be at most 60 so no
// matching minute can slip between polls.
func NewScheduler(
	taskRepo repositories.SyncTaskRepository,
	syncSvc SyncService,
	pollSeconds int,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		taskRepo:     taskRepo,
		syncSvc:      syncSvc,
		logger:       logger.Named("scheduler"),
		pollInterval: time.Duration(pollSeconds) * time.Second,
		now:          time.Now,
		running:      make(map[uuid.UUID]bool),
		lastFired:    make(map[uuid.UUID]time.Time),
	}
}

// Run starts the polling loop in a background goroutine. It returns
// immediately; the loop stops when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Sync scheduler started",
		zap.Duration("poll_interval", s.pollInterval))

	go func() {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Sync scheduler stopping")
				return
			case <-ticker.C:
				s.poll(ctx)
			}
		}
	}()
}

// poll loads every task and fires the due ones. A failure to list tasks is
// logged and retried on the next tick.
func (s *Scheduler) poll(ctx context.Context) {
	tasks, err := s.taskRepo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list sync tasks", zap.Error(err))
		return
	}

	s.prune(tasks)

	minute := s.now().Truncate(time.Minute)
	for _, task := range tasks {
		if !task.Recurrence.Matches(minute) {
			continue
		}
		if !s.claim(task.ID, minute) {
			continue
		}

		s.wg.Add(1)
		go func(task *models.SyncTask) {
			defer s.wg.Done()
			defer s.release(task.ID)
			s.fire(ctx, task)
		}(task)
	}
}

// prune drops fire records for tasks that no longer exist, so the map does
// not grow with deleted tasks. In-flight runs keep their entry until release.
func (s *Scheduler) prune(tasks []*models.SyncTask) {
	live := make(map[uuid.UUID]bool, len(tasks))
	for _, task := range tasks {
		live[task.ID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.lastFired {
		if !live[id] && !s.running[id] {
			delete(s.lastFired, id)
		}
	}
}

// claim marks a task as firing for the given minute. It refuses when the task
// already fired this minute or its previous run has not finished.
func (s *Scheduler) claim(id uuid.UUID, minute time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running[id] {
		s.logger.Warn("Skipping scheduled sync, previous run still in progress",
			zap.String("task_id", id.String()))
		return false
	}
	if last, ok := s.lastFired[id]; ok && !last.Before(minute) {
		return false
	}

	s.running[id] = true
	s.lastFired[id] = minute
	return true
}

func (s *Scheduler) release(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, id)
}

// fire runs one task and records the outcome on the task row.
func (s *Scheduler) fire(ctx context.Context, task *models.SyncTask) {
	s.logger.Info("Firing scheduled sync",
		zap.String("task_id", task.ID.String()),
		zap.String("source_table", task.SourceTable),
		zap.String("target_table", task.TargetTable))

	result := s.syncSvc.SyncOne(ctx, task.DatasourceID, task.SourceTable, task.TargetTable)

	run := models.SyncRun{
		At:      s.now(),
		Success: result.Success,
		Rows:    result.RowsSynced,
		Error:   result.Error,
	}
	if err := s.taskRepo.RecordRun(ctx, task.ID, run); err != nil {
		s.logger.Error("Failed to record sync run",
			zap.String("task_id", task.ID.String()),
			zap.Error(err))
	}
}

// waitIdle blocks until all in-flight firings have finished. Test hook.
func (s *Scheduler) waitIdle() {
	s.wg.Wait()
}
