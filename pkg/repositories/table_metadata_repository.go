package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quarrydata/sync-engine/pkg/apperrors"
	"github.com/quarrydata/sync-engine/pkg/database"
	"github.com/quarrydata/sync-engine/pkg/models"
)

// TableMetadataRepository defines data access for per-table metadata.
// The description and display_name columns are user-owned; auto_description
// and analyzed_at are system-owned. The two sets are written by separate
// methods so a sync refresh can never clobber a user edit.
type TableMetadataRepository interface {
	// UpsertAuto creates the entry if missing and refreshes only the
	// system-owned fields.
	UpsertAuto(ctx context.Context, tableName, sourceType, autoDescription string, analyzedAt time.Time) error

	// UpsertUserFields creates the entry if missing and writes only the
	// user-owned fields.
	UpsertUserFields(ctx context.Context, tableName, displayName, description string) error

	// GetByTable retrieves one entry.
	GetByTable(ctx context.Context, tableName string) (*models.TableMetadata, error)

	// List retrieves all entries ordered by table name.
	List(ctx context.Context) ([]*models.TableMetadata, error)

	// ListByTables retrieves entries for the given table names.
	ListByTables(ctx context.Context, tableNames []string) ([]*models.TableMetadata, error)
}

type tableMetadataRepository struct {
	db *database.DB
}

// NewTableMetadataRepository creates a new table metadata repository.
func NewTableMetadataRepository(db *database.DB) TableMetadataRepository {
	return &tableMetadataRepository{db: db}
}

func (r *tableMetadataRepository) UpsertAuto(ctx context.Context, tableName, sourceType, autoDescription string, analyzedAt time.Time) error {
	query := `
		INSERT INTO engine_table_metadata (table_name, source_type, auto_description, analyzed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (table_name) DO UPDATE SET
			source_type = EXCLUDED.source_type,
			auto_description = EXCLUDED.auto_description,
			analyzed_at = EXCLUDED.analyzed_at,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.Exec(ctx, query, tableName, sourceType, autoDescription, analyzedAt, time.Now()); err != nil {
		return fmt.Errorf("failed to refresh table metadata: %w", err)
	}
	return nil
}

func (r *tableMetadataRepository) UpsertUserFields(ctx context.Context, tableName, displayName, description string) error {
	query := `
		INSERT INTO engine_table_metadata (table_name, display_name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (table_name) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.Exec(ctx, query, tableName, displayName, description, time.Now()); err != nil {
		return fmt.Errorf("failed to update table metadata: %w", err)
	}
	return nil
}

const metadataColumns = `table_name, display_name, description, auto_description, source_type, analyzed_at, created_at, updated_at`

func (r *tableMetadataRepository) GetByTable(ctx context.Context, tableName string) (*models.TableMetadata, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM engine_table_metadata WHERE table_name = $1`, metadataColumns),
		tableName)

	meta, err := scanMetadata(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("table metadata %q: %w", tableName, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get table metadata: %w", err)
	}
	return meta, nil
}

func (r *tableMetadataRepository) List(ctx context.Context) ([]*models.TableMetadata, error) {
	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM engine_table_metadata ORDER BY table_name`, metadataColumns))
	if err != nil {
		return nil, fmt.Errorf("failed to list table metadata: %w", err)
	}
	defer rows.Close()

	return collectMetadata(rows)
}

func (r *tableMetadataRepository) ListByTables(ctx context.Context, tableNames []string) ([]*models.TableMetadata, error) {
	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM engine_table_metadata WHERE table_name = ANY($1) ORDER BY table_name`, metadataColumns),
		tableNames)
	if err != nil {
		return nil, fmt.Errorf("failed to list table metadata: %w", err)
	}
	defer rows.Close()

	return collectMetadata(rows)
}

func collectMetadata(rows pgx.Rows) ([]*models.TableMetadata, error) {
	var entries []*models.TableMetadata
	for rows.Next() {
		meta, err := scanMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table metadata: %w", err)
		}
		entries = append(entries, meta)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table metadata: %w", err)
	}

	return entries, nil
}

func scanMetadata(row pgx.Row) (*models.TableMetadata, error) {
	var meta models.TableMetadata
	err := row.Scan(
		&meta.TableName,
		&meta.DisplayName,
		&meta.Description,
		&meta.AutoDescription,
		&meta.SourceType,
		&meta.AnalyzedAt,
		&meta.CreatedAt,
		&meta.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// Ensure tableMetadataRepository implements TableMetadataRepository at compile time.
var _ TableMetadataRepository = (*tableMetadataRepository)(nil)
