package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrydata/sync-engine/pkg/apperrors"
	"github.com/quarrydata/sync-engine/pkg/models"
	"github.com/quarrydata/sync-engine/pkg/warehouse"
)

// stubMetaRepo is an in-memory metadata repository that keeps the
// user-owned and system-owned field split.
type stubMetaRepo struct {
	entries map[string]*models.TableMetadata
}

func newStubMetaRepo() *stubMetaRepo {
	return &stubMetaRepo{entries: make(map[string]*models.TableMetadata)}
}

func (r *stubMetaRepo) entry(tableName string) *models.TableMetadata {
	if e, ok := r.entries[tableName]; ok {
		return e
	}
	e := &models.TableMetadata{TableName: tableName}
	r.entries[tableName] = e
	return e
}

func (r *stubMetaRepo) UpsertAuto(ctx context.Context, tableName, sourceType, autoDescription string, analyzedAt time.Time) error {
	e := r.entry(tableName)
	e.SourceType = sourceType
	e.AutoDescription = autoDescription
	e.AnalyzedAt = &analyzedAt
	return nil
}

func (r *stubMetaRepo) UpsertUserFields(ctx context.Context, tableName, displayName, description string) error {
	e := r.entry(tableName)
	e.DisplayName = displayName
	e.Description = description
	return nil
}

func (r *stubMetaRepo) GetByTable(ctx context.Context, tableName string) (*models.TableMetadata, error) {
	e, ok := r.entries[tableName]
	if !ok {
		return nil, fmt.Errorf("table metadata %q: %w", tableName, apperrors.ErrNotFound)
	}
	return e, nil
}

func (r *stubMetaRepo) List(ctx context.Context) ([]*models.TableMetadata, error) {
	var out []*models.TableMetadata
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out, nil
}

func (r *stubMetaRepo) ListByTables(ctx context.Context, tableNames []string) ([]*models.TableMetadata, error) {
	var out []*models.TableMetadata
	for _, name := range tableNames {
		if e, ok := r.entries[name]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// stubCatalog fakes the warehouse introspection surface.
type stubCatalog struct {
	tables map[string][]warehouse.TargetColumn
	counts map[string]int64
}

func (c *stubCatalog) TableExists(ctx context.Context, table string) (bool, error) {
	_, ok := c.tables[table]
	return ok, nil
}

func (c *stubCatalog) Describe(ctx context.Context, table string) ([]warehouse.TargetColumn, error) {
	return c.tables[table], nil
}

func (c *stubCatalog) RowCount(ctx context.Context, table string) (int64, error) {
	return c.counts[table], nil
}

func TestMetadataService_RefreshPreservesUserFields(t *testing.T) {
	repo := newStubMetaRepo()
	svc := NewMetadataService(repo, &stubTaskRepo{}, &stubCatalog{}, zap.NewNop())
	ctx := context.Background()

	if err := svc.UpdateUserFields(ctx, "orders", "Orders", "All customer orders"); err != nil {
		t.Fatalf("UpdateUserFields failed: %v", err)
	}

	cols := []warehouse.TargetColumn{{Name: "id", Type: "BIGINT"}, {Name: "total", Type: "NUMERIC(10,2)"}}
	if err := svc.RefreshAfterSync(ctx, "orders", models.SourceTypeDatabaseSync, 250, cols); err != nil {
		t.Fatalf("RefreshAfterSync failed: %v", err)
	}

	meta, err := svc.Get(ctx, "orders")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if meta.DisplayName != "Orders" || meta.Description != "All customer orders" {
		t.Errorf("user fields were clobbered by refresh: %+v", meta)
	}
	if !strings.Contains(meta.AutoDescription, "250 rows") {
		t.Errorf("auto description missing row count: %q", meta.AutoDescription)
	}
	if !strings.Contains(meta.AutoDescription, "total (numeric(10,2))") {
		t.Errorf("auto description missing column detail: %q", meta.AutoDescription)
	}
	if meta.AnalyzedAt == nil {
		t.Error("expected analyzed_at to be set by refresh")
	}
}

func TestMetadataService_EffectiveDescription(t *testing.T) {
	repo := newStubMetaRepo()
	svc := NewMetadataService(repo, &stubTaskRepo{}, &stubCatalog{}, zap.NewNop())
	ctx := context.Background()

	if err := svc.RefreshAfterSync(ctx, "orders", models.SourceTypeDatabaseSync, 10, nil); err != nil {
		t.Fatalf("RefreshAfterSync failed: %v", err)
	}

	meta, _ := svc.Get(ctx, "orders")
	if meta.EffectiveDescription() != meta.AutoDescription {
		t.Error("expected auto description to win while user description is empty")
	}

	if err := svc.UpdateUserFields(ctx, "orders", "", "Hand-written"); err != nil {
		t.Fatalf("UpdateUserFields failed: %v", err)
	}
	meta, _ = svc.Get(ctx, "orders")
	if meta.EffectiveDescription() != "Hand-written" {
		t.Errorf("expected user description to win, got %q", meta.EffectiveDescription())
	}
}

func TestMetadataService_BulkUpdate(t *testing.T) {
	repo := newStubMetaRepo()
	svc := NewMetadataService(repo, &stubTaskRepo{}, &stubCatalog{}, zap.NewNop())
	ctx := context.Background()

	edits := []MetadataEdit{
		{TableName: "orders", DisplayName: "Orders", Description: "orders desc"},
		{TableName: "", DisplayName: "skipped", Description: "no table name"},
		{TableName: "items", DisplayName: "Items", Description: ""},
	}
	if err := svc.BulkUpdate(ctx, edits); err != nil {
		t.Fatalf("BulkUpdate failed: %v", err)
	}

	if len(repo.entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(repo.entries))
	}
	if repo.entries["orders"].DisplayName != "Orders" {
		t.Error("orders edit not applied")
	}
}

func TestMetadataService_Analyze(t *testing.T) {
	repo := newStubMetaRepo()
	catalog := &stubCatalog{
		tables: map[string][]warehouse.TargetColumn{
			"orders": {{Name: "id", Type: "bigint"}},
		},
		counts: map[string]int64{"orders": 77},
	}
	svc := NewMetadataService(repo, &stubTaskRepo{}, catalog, zap.NewNop())
	ctx := context.Background()

	meta, err := svc.Analyze(ctx, "orders")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !strings.Contains(meta.AutoDescription, "77 rows") {
		t.Errorf("analyze did not regenerate auto description: %q", meta.AutoDescription)
	}
	if meta.SourceType != models.SourceTypeDatabaseSync {
		t.Errorf("expected default source type, got %q", meta.SourceType)
	}
}

func TestMetadataService_Analyze_PreservesSourceType(t *testing.T) {
	repo := newStubMetaRepo()
	catalog := &stubCatalog{
		tables: map[string][]warehouse.TargetColumn{"budget": {{Name: "amount", Type: "numeric"}}},
		counts: map[string]int64{"budget": 12},
	}
	svc := NewMetadataService(repo, &stubTaskRepo{}, catalog, zap.NewNop())
	ctx := context.Background()

	if err := repo.UpsertAuto(ctx, "budget", models.SourceTypeExcel, "old", time.Now()); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	meta, err := svc.Analyze(ctx, "budget")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if meta.SourceType != models.SourceTypeExcel {
		t.Errorf("analyze overwrote source type: got %q", meta.SourceType)
	}
}

func TestMetadataService_Analyze_NotFound(t *testing.T) {
	svc := NewMetadataService(newStubMetaRepo(), &stubTaskRepo{}, &stubCatalog{}, zap.NewNop())

	_, err := svc.Analyze(context.Background(), "missing")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing warehouse table, got %v", err)
	}
}

func TestMetadataService_ListAIEnabled(t *testing.T) {
	repo := newStubMetaRepo()
	dsID := uuid.New()
	taskRepo := &stubTaskRepo{aiTasks: []*models.SyncTask{
		{ID: uuid.New(), DatasourceID: dsID, SourceTable: "orders", TargetTable: "orders", EnabledForAI: true},
		{ID: uuid.New(), DatasourceID: dsID, SourceTable: "orders_v2", TargetTable: "orders", EnabledForAI: true},
		{ID: uuid.New(), DatasourceID: dsID, SourceTable: "items", TargetTable: "items", EnabledForAI: true},
	}}
	svc := NewMetadataService(repo, taskRepo, &stubCatalog{}, zap.NewNop())
	ctx := context.Background()

	if err := repo.UpsertUserFields(ctx, "orders", "Orders", "order rows"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	tables, err := svc.ListAIEnabled(ctx)
	if err != nil {
		t.Fatalf("ListAIEnabled failed: %v", err)
	}

	// Two tasks point at the same target table; it appears once.
	if len(tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(tables))
	}
	if tables[0].TableName != "orders" || tables[0].DisplayName != "Orders" {
		t.Errorf("unexpected first entry: %+v", tables[0])
	}
	if tables[1].TableName != "items" {
		t.Errorf("unexpected second entry: %+v", tables[1])
	}
}

func TestMetadataService_ListAIEnabled_Empty(t *testing.T) {
	svc := NewMetadataService(newStubMetaRepo(), &stubTaskRepo{}, &stubCatalog{}, zap.NewNop())

	tables, err := svc.ListAIEnabled(context.Background())
	if err != nil {
		t.Fatalf("ListAIEnabled failed: %v", err)
	}
	if tables == nil || len(tables) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", tables)
	}
}
