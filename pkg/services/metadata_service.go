package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrydata/sync-engine/pkg/apperrors"
	"github.com/quarrydata/sync-engine/pkg/models"
	"github.com/quarrydata/sync-engine/pkg/repositories"
	"github.com/quarrydata/sync-engine/pkg/warehouse"
)

// MetadataEdit is one user edit of a table's display name and description.
type MetadataEdit struct {
	TableName   string `json:"table_name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// AIEnabledTable is one table exposed to the natural-language query
// subsystem: the task's AI flag joined with the table's metadata.
type AIEnabledTable struct {
	TableName    string    `json:"table_name"`
	DisplayName  string    `json:"display_name"`
	Description  string    `json:"description"`
	DatasourceID uuid.UUID `json:"datasource_id"`
	SourceTable  string    `json:"source_table"`
}

// WarehouseCatalog is the warehouse introspection surface the metadata
// registry needs. Satisfied by *warehouse.Loader.
type WarehouseCatalog interface {
	TableExists(ctx context.Context, table string) (bool, error)
	Describe(ctx context.Context, table string) ([]warehouse.TargetColumn, error)
	RowCount(ctx context.Context, table string) (int64, error)
}

// MetadataService manages the per-table metadata registry.
type MetadataService interface {
	// List retrieves all metadata entries.
	List(ctx context.Context) ([]*models.TableMetadata, error)

	// Get retrieves one entry.
	Get(ctx context.Context, tableName string) (*models.TableMetadata, error)

	// UpdateUserFields writes the user-owned display_name and description.
	UpdateUserFields(ctx context.Context, tableName, displayName, description string) error

	// BulkUpdate applies several user edits.
	BulkUpdate(ctx context.Context, edits []MetadataEdit) error

	// RefreshAfterSync regenerates the system-owned fields after a
	// successful sync. User edits are preserved.
	RefreshAfterSync(ctx context.Context, tableName, sourceType string, rowCount int64, cols []warehouse.TargetColumn) error

	// Analyze regenerates auto_description from the warehouse's own catalog
	// and returns the refreshed entry.
	Analyze(ctx context.Context, tableName string) (*models.TableMetadata, error)

	// ListAIEnabled returns the tables whose sync tasks have enabled_for_ai
	// set, joined with their metadata.
	ListAIEnabled(ctx context.Context) ([]AIEnabledTable, error)
}

type metadataService struct {
	metaRepo repositories.TableMetadataRepository
	taskRepo repositories.SyncTaskRepository
	loader   WarehouseCatalog
	logger   *zap.Logger
}

// NewMetadataService creates a new metadata service.
func NewMetadataService(
	metaRepo repositories.TableMetadataRepository,
	taskRepo repositories.SyncTaskRepository,
	loader WarehouseCatalog,
	logger *zap.Logger,
) MetadataService {
	return &metadataService{
		metaRepo: metaRepo,
		taskRepo: taskRepo,
		loader:   loader,
		logger:   logger.Named("metadata-service"),
	}
}

var _ MetadataService = (*metadataService)(nil)

func (s *metadataService) List(ctx context.Context) ([]*models.TableMetadata, error) {
	return s.metaRepo.List(ctx)
}

func (s *metadataService) Get(ctx context.Context, tableName string) (*models.TableMetadata, error) {
	return s.metaRepo.GetByTable(ctx, tableName)
}

func (s *metadataService) UpdateUserFields(ctx context.Context, tableName, displayName, description string) error {
	return s.metaRepo.UpsertUserFields(ctx, tableName, displayName, description)
}

func (s *metadataService) BulkUpdate(ctx context.Context, edits []MetadataEdit) error {
	for _, edit := range edits {
		if edit.TableName == "" {
			continue
		}
		if err := s.metaRepo.UpsertUserFields(ctx, edit.TableName, edit.DisplayName, edit.Description); err != nil {
			return fmt.Errorf("updating metadata for %q: %w", edit.TableName, err)
		}
	}
	return nil
}

// describeTable builds the machine-generated description from the table's
// shape. Deterministic on purpose: the same table always describes itself
// the same way.
func describeTable(rowCount int64, cols []warehouse.TargetColumn) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf("%s (%s)", col.Name, strings.ToLower(col.Type))
	}
	return fmt.Sprintf("%d rows, %d columns: %s", rowCount, len(cols), strings.Join(parts, ", "))
}

func (s *metadataService) RefreshAfterSync(ctx context.Context, tableName, sourceType string, rowCount int64, cols []warehouse.TargetColumn) error {
	auto := describeTable(rowCount, cols)
	if err := s.metaRepo.UpsertAuto(ctx, tableName, sourceType, auto, time.Now()); err != nil {
		return err
	}

	s.logger.Debug("Table metadata refreshed",
		zap.String("table", tableName),
		zap.Int64("rows", rowCount))
	return nil
}

func (s *metadataService) Analyze(ctx context.Context, tableName string) (*models.TableMetadata, error) {
	exists, err := s.loader.TableExists(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("warehouse table %q: %w", tableName, apperrors.ErrNotFound)
	}

	cols, err := s.loader.Describe(ctx, tableName)
	if err != nil {
		return nil, err
	}

	rowCount, err := s.loader.RowCount(ctx, tableName)
	if err != nil {
		return nil, err
	}

	// Keep the existing provenance when the entry already exists.
	sourceType := models.SourceTypeDatabaseSync
	if existing, err := s.metaRepo.GetByTable(ctx, tableName); err == nil {
		sourceType = existing.SourceType
	}

	if err := s.metaRepo.UpsertAuto(ctx, tableName, sourceType, describeTable(rowCount, cols), time.Now()); err != nil {
		return nil, err
	}

	return s.metaRepo.GetByTable(ctx, tableName)
}

func (s *metadataService) ListAIEnabled(ctx context.Context) ([]AIEnabledTable, error) {
	tasks, err := s.taskRepo.ListAIEnabled(ctx)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return []AIEnabledTable{}, nil
	}

	names := make([]string, 0, len(tasks))
	for _, task := range tasks {
		names = append(names, task.TargetTable)
	}

	entries, err := s.metaRepo.ListByTables(ctx, names)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*models.TableMetadata, len(entries))
	for _, entry := range entries {
		byName[entry.TableName] = entry
	}

	result := make([]AIEnabledTable, 0, len(tasks))
	seen := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		if seen[task.TargetTable] {
			continue
		}
		seen[task.TargetTable] = true

		item := AIEnabledTable{
			TableName:    task.TargetTable,
			DatasourceID: task.DatasourceID,
			SourceTable:  task.SourceTable,
		}
		if meta, ok := byName[task.TargetTable]; ok {
			item.DisplayName = meta.DisplayName
			item.Description = meta.EffectiveDescription()
		}
		result = append(result, item)
	}
	return result, nil
}
