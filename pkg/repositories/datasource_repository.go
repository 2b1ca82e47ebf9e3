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

// DatasourceRepository defines data access for source connection profiles.
// Password is stored encrypted - encryption/decryption is handled by the
// service layer.
type DatasourceRepository interface {
	// Create inserts a new datasource. Returns apperrors.ErrConflict if the
	// name is already taken.
	Create(ctx context.Context, ds *models.DataSource) error

	// GetByID retrieves a datasource by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*models.DataSource, error)

	// List retrieves all datasources, newest first.
	List(ctx context.Context) ([]*models.DataSource, error)

	// Delete removes a datasource by ID. Referencing sync tasks are removed
	// by the foreign key cascade.
	Delete(ctx context.Context, id uuid.UUID) error

	// CountTasks returns the number of sync tasks referencing a datasource.
	CountTasks(ctx context.Context, id uuid.UUID) (int, error)
}

type datasourceRepository struct {
	db *database.DB
}

// NewDatasourceRepository creates a new datasource repository.
func NewDatasourceRepository(db *database.DB) DatasourceRepository {
	return &datasourceRepository{db: db}
}

func (r *datasourceRepository) Create(ctx context.Context, ds *models.DataSource) error {
	now := time.Now()
	ds.CreatedAt = now
	ds.UpdatedAt = now

	query := `
		INSERT INTO engine_datasources (name, source_type, host, port, username, password, database_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		ds.Name,
		ds.SourceType,
		ds.Host,
		ds.Port,
		ds.User,
		ds.Password,
		ds.Database,
		ds.CreatedAt,
		ds.UpdatedAt,
	).Scan(&ds.ID)
	if err != nil {
		// Unique constraint violation (PostgreSQL error code 23505)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("datasource %q: %w", ds.Name, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create datasource: %w", err)
	}

	return nil
}

func (r *datasourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DataSource, error) {
	query := `
		SELECT id, name, source_type, host, port, username, password, database_name, created_at, updated_at
		FROM engine_datasources
		WHERE id = $1`

	var ds models.DataSource
	err := r.db.QueryRow(ctx, query, id).Scan(
		&ds.ID,
		&ds.Name,
		&ds.SourceType,
		&ds.Host,
		&ds.Port,
		&ds.User,
		&ds.Password,
		&ds.Database,
		&ds.CreatedAt,
		&ds.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("datasource %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get datasource: %w", err)
	}

	return &ds, nil
}

func (r *datasourceRepository) List(ctx context.Context) ([]*models.DataSource, error) {
	query := `
		SELECT id, name, source_type, host, port, username, password, database_name, created_at, updated_at
		FROM engine_datasources
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasources: %w", err)
	}
	defer rows.Close()

	var datasources []*models.DataSource
	for rows.Next() {
		var ds models.DataSource
		err := rows.Scan(
			&ds.ID,
			&ds.Name,
			&ds.SourceType,
			&ds.Host,
			&ds.Port,
			&ds.User,
			&ds.Password,
			&ds.Database,
			&ds.CreatedAt,
			&ds.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan datasource: %w", err)
		}
		datasources = append(datasources, &ds)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating datasources: %w", err)
	}

	return datasources, nil
}

func (r *datasourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM engine_datasources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete datasource: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("datasource %s: %w", id, apperrors.ErrNotFound)
	}

	return nil
}

func (r *datasourceRepository) CountTasks(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM engine_sync_tasks WHERE datasource_id = $1`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sync tasks: %w", err)
	}
	return count, nil
}

// Ensure datasourceRepository implements DatasourceRepository at compile time.
var _ DatasourceRepository = (*datasourceRepository)(nil)
