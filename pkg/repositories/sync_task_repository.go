package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quarrydata/sync-engine/pkg/apperrors"
	"github.com/quarrydata/sync-engine/pkg/database"
	"github.com/quarrydata/sync-engine/pkg/models"
)

// SyncTaskRepository defines data access for recurring sync tasks.
type SyncTaskRepository interface {
	// Upsert creates a task, or updates the existing one when the
	// (datasource, source_table, target_table) triple already has an active
	// recurrence. The task's ID is set either way.
	Upsert(ctx context.Context, task *models.SyncTask) error

	// GetByID retrieves a task by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*models.SyncTask, error)

	// List retrieves all tasks, newest first.
	List(ctx context.Context) ([]*models.SyncTask, error)

	// ListAIEnabled retrieves tasks with enabled_for_ai set.
	ListAIEnabled(ctx context.Context) ([]*models.SyncTask, error)

	// Update replaces a task's definition. Returns apperrors.ErrNotFound if
	// the id does not exist, apperrors.ErrConflict if the new triple
	// collides with another task.
	Update(ctx context.Context, task *models.SyncTask) error

	// Delete removes a task by ID.
	Delete(ctx context.Context, id uuid.UUID) error

	// SetEnabledForAI flips only the enabled_for_ai flag.
	SetEnabledForAI(ctx context.Context, id uuid.UUID, enabled bool) error

	// RecordRun stores the outcome of one firing on the task row.
	RecordRun(ctx context.Context, id uuid.UUID, run models.SyncRun) error
}

type syncTaskRepository struct {
	db *database.DB
}

// NewSyncTaskRepository creates a new sync task repository.
func NewSyncTaskRepository(db *database.DB) SyncTaskRepository {
	return &syncTaskRepository{db: db}
}

const taskColumns = `id, datasource_id, source_table, target_table,
	schedule_type, schedule_minute, schedule_hour, schedule_day_of_week, schedule_day_of_month,
	enabled_for_ai, last_run_at, last_run_success, last_run_rows, last_run_error,
	created_at, updated_at`

func (r *syncTaskRepository) Upsert(ctx context.Context, task *models.SyncTask) error {
	kind, minute, hour, dow, dom := models.RecurrenceFields(task.Recurrence)
	now := time.Now()

	// The unique triple index turns a duplicate create into an update of the
	// existing schedule, so the same table never gets two recurrences.
	query := `
		INSERT INTO engine_sync_tasks
			(datasource_id, source_table, target_table,
			 schedule_type, schedule_minute, schedule_hour, schedule_day_of_week, schedule_day_of_month,
			 enabled_for_ai, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (datasource_id, source_table, target_table) DO UPDATE SET
			schedule_type = EXCLUDED.schedule_type,
			schedule_minute = EXCLUDED.schedule_minute,
			schedule_hour = EXCLUDED.schedule_hour,
			schedule_day_of_week = EXCLUDED.schedule_day_of_week,
			schedule_day_of_month = EXCLUDED.schedule_day_of_month,
			enabled_for_ai = EXCLUDED.enabled_for_ai,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		task.DatasourceID,
		task.SourceTable,
		task.TargetTable,
		kind, minute, hour, dow, dom,
		task.EnabledForAI,
		now,
	).Scan(&task.ID, &task.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			// Foreign key violation: the datasource is gone.
			return fmt.Errorf("datasource %s: %w", task.DatasourceID, apperrors.ErrNotFound)
		}
		return fmt.Errorf("failed to upsert sync task: %w", err)
	}
	task.UpdatedAt = now

	return nil
}

func (r *syncTaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SyncTask, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM engine_sync_tasks WHERE id = $1`, taskColumns), id)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sync task %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get sync task: %w", err)
	}
	return task, nil
}

func (r *syncTaskRepository) List(ctx context.Context) ([]*models.SyncTask, error) {
	return r.list(ctx, `SELECT %s FROM engine_sync_tasks ORDER BY created_at DESC`)
}

func (r *syncTaskRepository) ListAIEnabled(ctx context.Context) ([]*models.SyncTask, error) {
	return r.list(ctx, `SELECT %s FROM engine_sync_tasks WHERE enabled_for_ai ORDER BY target_table`)
}

func (r *syncTaskRepository) list(ctx context.Context, queryTemplate string) ([]*models.SyncTask, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(queryTemplate, taskColumns))
	if err != nil {
		return nil, fmt.Errorf("failed to list sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.SyncTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync tasks: %w", err)
	}

	return tasks, nil
}

func (r *syncTaskRepository) Update(ctx context.Context, task *models.SyncTask) error {
	kind, minute, hour, dow, dom := models.RecurrenceFields(task.Recurrence)

	query := `
		UPDATE engine_sync_tasks SET
			datasource_id = $2,
			source_table = $3,
			target_table = $4,
			schedule_type = $5,
			schedule_minute = $6,
			schedule_hour = $7,
			schedule_day_of_week = $8,
			schedule_day_of_month = $9,
			enabled_for_ai = $10,
			updated_at = $11
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		task.ID,
		task.DatasourceID,
		task.SourceTable,
		task.TargetTable,
		kind, minute, hour, dow, dom,
		task.EnabledForAI,
		time.Now(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("another task already schedules this table: %w", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to update sync task: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("sync task %s: %w", task.ID, apperrors.ErrNotFound)
	}

	return nil
}

func (r *syncTaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM engine_sync_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sync task: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("sync task %s: %w", id, apperrors.ErrNotFound)
	}

	return nil
}

func (r *syncTaskRepository) SetEnabledForAI(ctx context.Context, id uuid.UUID, enabled bool) error {
	result, err := r.db.Exec(ctx,
		`UPDATE engine_sync_tasks SET enabled_for_ai = $2, updated_at = $3 WHERE id = $1`,
		id, enabled, time.Now())
	if err != nil {
		return fmt.Errorf("failed to toggle enabled_for_ai: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("sync task %s: %w", id, apperrors.ErrNotFound)
	}

	return nil
}

func (r *syncTaskRepository) RecordRun(ctx context.Context, id uuid.UUID, run models.SyncRun) error {
	result, err := r.db.Exec(ctx, `
		UPDATE engine_sync_tasks SET
			last_run_at = $2,
			last_run_success = $3,
			last_run_rows = $4,
			last_run_error = $5,
			updated_at = $2
		WHERE id = $1`,
		id, run.At, run.Success, run.Rows, run.Error)
	if err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("sync task %s: %w", id, apperrors.ErrNotFound)
	}

	return nil
}

// scanTask reads one task row, reconstructing the recurrence variant from
// the flat schedule columns.
func scanTask(row pgx.Row) (*models.SyncTask, error) {
	var task models.SyncTask
	var kind string
	var minute int
	var hour, dow, dom *int

	err := row.Scan(
		&task.ID,
		&task.DatasourceID,
		&task.SourceTable,
		&task.TargetTable,
		&kind, &minute, &hour, &dow, &dom,
		&task.EnabledForAI,
		&task.LastRunAt,
		&task.LastRunSuccess,
		&task.LastRunRows,
		&task.LastRunError,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec, err := models.ParseRecurrence(kind, minute, hour, dow, dom)
	if err != nil {
		return nil, fmt.Errorf("stored schedule is invalid: %w", err)
	}
	task.Recurrence = rec

	return &task, nil
}

// Ensure syncTaskRepository implements SyncTaskRepository at compile time.
var _ SyncTaskRepository = (*syncTaskRepository)(nil)
