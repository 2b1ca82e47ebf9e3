package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/quarrydata/sync-engine/pkg/adapters/source"
	"github.com/quarrydata/sync-engine/pkg/apperrors"
	"github.com/quarrydata/sync-engine/pkg/models"
	"github.com/quarrydata/sync-engine/pkg/services"
	"github.com/quarrydata/sync-engine/pkg/warehouse"
)

// mockDatasourceService is a configurable mock for handler tests.
type mockDatasourceService struct {
	databases   []string
	datasources []*models.DataSource
	tables      []source.TableInfo
	preview     *models.TablePreview
	err         error

	savedPassword string
	deletedID     uuid.UUID
}

func (m *mockDatasourceService) TestConnection(ctx context.Context, params services.ConnectionParams) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.databases, nil
}

func (m *mockDatasourceService) Save(ctx context.Context, ds *models.DataSource, password string) error {
	if m.err != nil {
		return m.err
	}
	ds.ID = uuid.New()
	m.savedPassword = password
	return nil
}

func (m *mockDatasourceService) Get(ctx context.Context, id uuid.UUID) (*models.DataSource, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.datasources) > 0 {
		return m.datasources[0], nil
	}
	return nil, m.err
}

func (m *mockDatasourceService) List(ctx context.Context) ([]*models.DataSource, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.datasources, nil
}

func (m *mockDatasourceService) Delete(ctx context.Context, id uuid.UUID) error {
	m.deletedID = id
	return m.err
}

func (m *mockDatasourceService) ListTables(ctx context.Context, id uuid.UUID) ([]source.TableInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.tables, nil
}

func (m *mockDatasourceService) Preview(ctx context.Context, id uuid.UUID, table string, rowCap int) (*models.TablePreview, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.preview, nil
}

// mockSyncService is a configurable mock for sync handler tests.
type mockSyncService struct {
	result models.SyncResult
	batch  *models.BatchSyncResult
	err    error

	lastSource string
	lastTarget string
	lastReqs   []services.SyncRequest
}

func (m *mockSyncService) SyncOne(ctx context.Context, datasourceID uuid.UUID, sourceTable, targetTable string) models.SyncResult {
	m.lastSource = sourceTable
	m.lastTarget = targetTable
	return m.result
}

func (m *mockSyncService) SyncMultiple(ctx context.Context, datasourceID uuid.UUID, reqs []services.SyncRequest) (*models.BatchSyncResult, error) {
	m.lastReqs = reqs
	if m.err != nil {
		return nil, m.err
	}
	return m.batch, nil
}

// mockSyncTaskService is a configurable mock for task handler tests.
type mockSyncTaskService struct {
	tasks []*models.SyncTask
	err   error

	scheduled *models.SyncTask
	updated   *models.SyncTask
	deletedID uuid.UUID
	aiEnabled *bool
}

func (m *mockSyncTaskService) Schedule(ctx context.Context, task *models.SyncTask) error {
	if m.err != nil {
		return m.err
	}
	task.ID = uuid.New()
	m.scheduled = task
	return nil
}

func (m *mockSyncTaskService) Get(ctx context.Context, id uuid.UUID) (*models.SyncTask, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, task := range m.tasks {
		if task.ID == id {
			copied := *task
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockSyncTaskService) List(ctx context.Context) ([]*models.SyncTask, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.tasks, nil
}

func (m *mockSyncTaskService) Update(ctx context.Context, task *models.SyncTask) error {
	if m.err != nil {
		return m.err
	}
	m.updated = task
	return nil
}

func (m *mockSyncTaskService) Delete(ctx context.Context, id uuid.UUID) error {
	m.deletedID = id
	return m.err
}

func (m *mockSyncTaskService) SetEnabledForAI(ctx context.Context, id uuid.UUID, enabled bool) error {
	if m.err != nil {
		return m.err
	}
	m.aiEnabled = &enabled
	return nil
}

// mockMetadataService is a configurable mock for metadata handler tests.
type mockMetadataService struct {
	entries   []*models.TableMetadata
	entry     *models.TableMetadata
	aiEnabled []services.AIEnabledTable
	err       error

	updatedTable string
	bulkEdits    []services.MetadataEdit
}

func (m *mockMetadataService) List(ctx context.Context) ([]*models.TableMetadata, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}

func (m *mockMetadataService) Get(ctx context.Context, tableName string) (*models.TableMetadata, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.entry, nil
}

func (m *mockMetadataService) UpdateUserFields(ctx context.Context, tableName, displayName, description string) error {
	if m.err != nil {
		return m.err
	}
	m.updatedTable = tableName
	return nil
}

func (m *mockMetadataService) BulkUpdate(ctx context.Context, edits []services.MetadataEdit) error {
	if m.err != nil {
		return m.err
	}
	m.bulkEdits = edits
	return nil
}

func (m *mockMetadataService) RefreshAfterSync(ctx context.Context, tableName, sourceType string, rowCount int64, cols []warehouse.TargetColumn) error {
	return m.err
}

func (m *mockMetadataService) Analyze(ctx context.Context, tableName string) (*models.TableMetadata, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.entry, nil
}

func (m *mockMetadataService) ListAIEnabled(ctx context.Context) ([]services.AIEnabledTable, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.aiEnabled, nil
}
