package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrydata/sync-engine/pkg/adapters/source"
	"github.com/quarrydata/sync-engine/pkg/apperrors"
	"github.com/quarrydata/sync-engine/pkg/models"
	"github.com/quarrydata/sync-engine/pkg/repositories"
)

// SyncTaskService manages recurring sync task definitions.
type SyncTaskService interface {
	// Schedule creates a task, or replaces the schedule when the same
	// (datasource, source, target) triple is already scheduled.
	Schedule(ctx context.Context, task *models.SyncTask) error

	// Get retrieves one task by ID.
	Get(ctx context.Context, id uuid.UUID) (*models.SyncTask, error)

	// List retrieves all tasks.
	List(ctx context.Context) ([]*models.SyncTask, error)

	// Update replaces a task's definition.
	Update(ctx context.Context, task *models.SyncTask) error

	// Delete removes a task.
	Delete(ctx context.Context, id uuid.UUID) error

	// SetEnabledForAI flips the task's AI exposure flag.
	SetEnabledForAI(ctx context.Context, id uuid.UUID, enabled bool) error
}

type syncTaskService struct {
	repo   repositories.SyncTaskRepository
	logger *zap.Logger
}

// NewSyncTaskService creates a new sync task service.
func NewSyncTaskService(repo repositories.SyncTaskRepository, logger *zap.Logger) SyncTaskService {
	return &syncTaskService{
		repo:   repo,
		logger: logger.Named("sync-task-service"),
	}
}

var _ SyncTaskService = (*syncTaskService)(nil)

func validateTask(task *models.SyncTask) error {
	if task.DatasourceID == uuid.Nil {
		return fmt.Errorf("datasource_id is required: %w", apperrors.ErrInvalidInput)
	}
	if !source.ValidIdentifier(task.SourceTable) {
		return fmt.Errorf("invalid source table name %q: %w", task.SourceTable, apperrors.ErrInvalidInput)
	}
	if !source.ValidIdentifier(task.TargetTable) {
		return fmt.Errorf("invalid target table name %q: %w", task.TargetTable, apperrors.ErrInvalidInput)
	}
	if task.Recurrence == nil {
		return fmt.Errorf("schedule is required: %w", apperrors.ErrInvalidInput)
	}
	return task.Recurrence.Validate()
}

func (s *syncTaskService) Schedule(ctx context.Context, task *models.SyncTask) error {
	if err := validateTask(task); err != nil {
		return err
	}

	if err := s.repo.Upsert(ctx, task); err != nil {
		return err
	}

	s.logger.Info("Sync task scheduled",
		zap.String("task_id", task.ID.String()),
		zap.String("source_table", task.SourceTable),
		zap.String("target_table", task.TargetTable),
		zap.String("schedule", string(task.Recurrence.Kind())))
	return nil
}

func (s *syncTaskService) Get(ctx context.Context, id uuid.UUID) (*models.SyncTask, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *syncTaskService) List(ctx context.Context) ([]*models.SyncTask, error) {
	return s.repo.List(ctx)
}

func (s *syncTaskService) Update(ctx context.Context, task *models.SyncTask) error {
	if err := validateTask(task); err != nil {
		return err
	}
	return s.repo.Update(ctx, task)
}

func (s *syncTaskService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *syncTaskService) SetEnabledForAI(ctx context.Context, id uuid.UUID, enabled bool) error {
	return s.repo.SetEnabledForAI(ctx, id, enabled)
}
