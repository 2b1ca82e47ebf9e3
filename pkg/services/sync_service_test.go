package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrydata/sync-engine/pkg/adapters/source"
	"github.com/quarrydata/sync-engine/pkg/config"
	"github.com/quarrydata/sync-engine/pkg/crypto"
	"github.com/quarrydata/sync-engine/pkg/models"
	"github.com/quarrydata/sync-engine/pkg/warehouse"
)

// stubConnector serves fixed rows and fails on demand per table.
type stubConnector struct {
	rows     map[string][][]any
	failRead map[string]error
}

func (c *stubConnector) Ping(ctx context.Context) error                  { return nil }
func (c *stubConnector) ListDatabases(ctx context.Context) ([]string, error) { return nil, nil }
func (c *stubConnector) ListTables(ctx context.Context) ([]source.TableInfo, error) {
	return nil, nil
}

func (c *stubConnector) TableSchema(ctx context.Context, table string) ([]source.Column, error) {
	if _, ok := c.rows[table]; !ok {
		return nil, fmt.Errorf("table %q: not found", table)
	}
	return []source.Column{
		{Name: "id", DataType: "int", ColumnType: "int"},
		{Name: "name", DataType: "varchar", ColumnType: "varchar(64)"},
	}, nil
}

func (c *stubConnector) CountRows(ctx context.Context, table string) (int64, error) {
	return int64(len(c.rows[table])), nil
}

func (c *stubConnector) SampleRows(ctx context.Context, table string, limit int) ([][]any, error) {
	return c.rows[table], nil
}

func (c *stubConnector) ReadTable(ctx context.Context, table string, cols []source.Column, chunkSize int) <-chan source.Batch {
	out := make(chan source.Batch, 2)
	go func() {
		defer close(out)
		if err := c.failRead[table]; err != nil {
			out <- source.Batch{Err: err, Done: true}
			return
		}
		out <- source.Batch{Rows: c.rows[table]}
		out <- source.Batch{Done: true}
	}()
	return out
}

func (c *stubConnector) MapColumnType(table string, col source.Column) (string, error) {
	return "TEXT", nil
}

func (c *stubConnector) Close() error { return nil }

// abortStubConnector streams endlessly until its context is cancelled and
// reports when the producer goroutine exits.
type abortStubConnector struct {
	stubConnector
	exited chan struct{}
}

func (c *abortStubConnector) ReadTable(ctx context.Context, table string, cols []source.Column, chunkSize int) <-chan source.Batch {
	out := make(chan source.Batch, 1)
	go func() {
		defer close(out)
		defer close(c.exited)
		for {
			select {
			case out <- source.Batch{Rows: [][]any{{int64(1), "x"}}}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// stubLoader records loads in memory. failOn fails a table after draining its
// stream; abortOn fails it immediately, leaving the stream undrained.
type stubLoader struct {
	mu      sync.Mutex
	ensured []string
	loaded  map[string]int64
	failOn  string
	abortOn string
}

func (l *stubLoader) EnsureTable(ctx context.Context, table string, cols []warehouse.TargetColumn) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensured = append(l.ensured, table)
	return nil
}

func (l *stubLoader) Load(ctx context.Context, table string, cols []warehouse.TargetColumn, batches <-chan source.Batch) (int64, error) {
	if table == l.abortOn {
		return 0, errors.New("copy failed")
	}
	var total int64
	for batch := range batches {
		if batch.Err != nil {
			return 0, batch.Err
		}
		total += int64(len(batch.Rows))
		if batch.Done {
			break
		}
	}
	if table == l.failOn {
		return 0, errors.New("copy failed")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded == nil {
		l.loaded = make(map[string]int64)
	}
	l.loaded[table] = total
	return total, nil
}

// stubDatasourceRepo serves one profile.
type stubDatasourceRepo struct {
	ds *models.DataSource
}

func (r *stubDatasourceRepo) Create(ctx context.Context, ds *models.DataSource) error { return nil }
func (r *stubDatasourceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.DataSource, error) {
	return r.ds, nil
}
func (r *stubDatasourceRepo) List(ctx context.Context) ([]*models.DataSource, error) {
	return nil, nil
}
func (r *stubDatasourceRepo) Delete(ctx context.Context, id uuid.UUID) error       { return nil }
func (r *stubDatasourceRepo) CountTasks(ctx context.Context, id uuid.UUID) (int, error) { return 0, nil }

// stubMetadataService records refreshes.
type stubMetadataService struct {
	mu        sync.Mutex
	refreshed []string
}

func (s *stubMetadataService) List(ctx context.Context) ([]*models.TableMetadata, error) {
	return nil, nil
}
func (s *stubMetadataService) Get(ctx context.Context, tableName string) (*models.TableMetadata, error) {
	return nil, nil
}
func (s *stubMetadataService) UpdateUserFields(ctx context.Context, tableName, displayName, description string) error {
	return nil
}
func (s *stubMetadataService) BulkUpdate(ctx context.Context, edits []MetadataEdit) error { return nil }
func (s *stubMetadataService) RefreshAfterSync(ctx context.Context, tableName, sourceType string, rowCount int64, cols []warehouse.TargetColumn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshed = append(s.refreshed, tableName)
	return nil
}
func (s *stubMetadataService) Analyze(ctx context.Context, tableName string) (*models.TableMetadata, error) {
	return nil, nil
}
func (s *stubMetadataService) ListAIEnabled(ctx context.Context) ([]AIEnabledTable, error) {
	return nil, nil
}

var registerStubAdapterOnce sync.Once

// currentStubConnector is swapped per test before opening the "stub" type.
var currentStubConnector source.Connector

func registerStubAdapter() {
	registerStubAdapterOnce.Do(func() {
		source.Register(source.Registration{
			Info: source.AdapterInfo{Type: "stub", DisplayName: "Stub"},
			Factory: func(ctx context.Context, config map[string]any) (source.Connector, error) {
				return currentStubConnector, nil
			},
		})
	})
}

func newTestSyncService(t *testing.T, conn source.Connector, loader *stubLoader, meta *stubMetadataService) SyncService {
	t.Helper()
	registerStubAdapter()
	currentStubConnector = conn

	encryptor, err := crypto.NewEncryptor("test-passphrase")
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}
	encrypted, err := encryptor.Encrypt("secret")
	if err != nil {
		t.Fatalf("failed to encrypt password: %v", err)
	}

	repo := &stubDatasourceRepo{ds: &models.DataSource{
		ID:         uuid.New(),
		Name:       "shop",
		SourceType: "stub",
		Host:       "db.internal",
		Port:       3306,
		User:       "reader",
		Password:   encrypted,
		Database:   "shop",
	}}

	cfg := config.SyncConfig{
		ConnectTimeoutSeconds: 2,
		BatchSize:             100,
		MaxWorkers:            3,
		PreviewDefaultRows:    100,
		PreviewMaxRows:        1000,
	}
	return NewSyncService(repo, meta, loader, encryptor, cfg, zap.NewNop())
}

func TestSyncService_SyncOne_Success(t *testing.T) {
	conn := &stubConnector{rows: map[string][][]any{
		"orders": {{int64(1), "a"}, {int64(2), "b"}, {int64(3), "c"}},
	}}
	loader := &stubLoader{}
	meta := &stubMetadataService{}
	svc := newTestSyncService(t, conn, loader, meta)

	result := svc.SyncOne(context.Background(), uuid.New(), "orders", "orders")

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.RowsSynced != 3 {
		t.Errorf("expected 3 rows synced, got %d", result.RowsSynced)
	}
	if loader.loaded["orders"] != 3 {
		t.Errorf("expected loader to receive 3 rows, got %d", loader.loaded["orders"])
	}
	if len(meta.refreshed) != 1 || meta.refreshed[0] != "orders" {
		t.Errorf("expected metadata refresh for orders, got %v", meta.refreshed)
	}
}

func TestSyncService_SyncOne_InvalidTableName(t *testing.T) {
	conn := &stubConnector{rows: map[string][][]any{}}
	svc := newTestSyncService(t, conn, &stubLoader{}, &stubMetadataService{})

	result := svc.SyncOne(context.Background(), uuid.New(), "orders; DROP TABLE users", "orders")

	if result.Success {
		t.Fatal("expected failure for invalid table name")
	}
	if result.Error == "" {
		t.Error("expected error detail in result")
	}
}

func TestSyncService_SyncOne_SanitizesErrors(t *testing.T) {
	conn := &stubConnector{
		rows: map[string][][]any{"orders": nil},
		failRead: map[string]error{
			"orders": errors.New("dial failed: reader:hunter2@tcp(db.internal:3306) refused"),
		},
	}
	meta := &stubMetadataService{}
	svc := newTestSyncService(t, conn, &stubLoader{}, meta)

	result := svc.SyncOne(context.Background(), uuid.New(), "orders", "orders")

	if result.Success {
		t.Fatal("expected failure")
	}
	if strings.Contains(result.Error, "hunter2") {
		t.Errorf("result error leaked credentials: %q", result.Error)
	}
	if len(meta.refreshed) != 0 {
		t.Error("metadata must not refresh after a failed sync")
	}
}

func TestSyncService_SyncOne_AbortedLoadReleasesReader(t *testing.T) {
	conn := &abortStubConnector{
		stubConnector: stubConnector{rows: map[string][][]any{"orders": nil}},
		exited:        make(chan struct{}),
	}
	loader := &stubLoader{abortOn: "orders"}
	svc := newTestSyncService(t, conn, loader, &stubMetadataService{})

	result := svc.SyncOne(context.Background(), uuid.New(), "orders", "orders")

	if result.Success {
		t.Fatal("expected failure when the load aborts")
	}
	select {
	case <-conn.exited:
	case <-time.After(5 * time.Second):
		t.Fatal("source reader still blocked after the load aborted")
	}
}

func TestSyncService_SyncMultiple_OrderAndCounts(t *testing.T) {
	conn := &stubConnector{
		rows: map[string][][]any{
			"orders":    {{int64(1)}, {int64(2)}},
			"customers": {{int64(1)}},
			"items":     {{int64(1)}, {int64(2)}, {int64(3)}},
		},
		failRead: map[string]error{
			"customers": errors.New("read failed"),
		},
	}
	loader := &stubLoader{}
	svc := newTestSyncService(t, conn, loader, &stubMetadataService{})

	reqs := []SyncRequest{
		{SourceTable: "orders", TargetTable: "orders"},
		{SourceTable: "customers", TargetTable: "customers"},
		{SourceTable: "items", TargetTable: "items"},
	}

	batch, err := svc.SyncMultiple(context.Background(), uuid.New(), reqs)
	if err != nil {
		t.Fatalf("SyncMultiple returned error: %v", err)
	}

	if batch.Success {
		t.Error("expected batch success=false with one failing table")
	}
	if batch.SuccessCount != 2 || batch.FailCount != 1 {
		t.Errorf("expected 2 successes and 1 failure, got %d/%d", batch.SuccessCount, batch.FailCount)
	}
	if len(batch.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(batch.Results))
	}

	// Results come back in request order regardless of completion order.
	for i, req := range reqs {
		if batch.Results[i].SourceTable != req.SourceTable {
			t.Errorf("result %d: expected %q, got %q", i, req.SourceTable, batch.Results[i].SourceTable)
		}
	}
	if batch.Results[1].Success {
		t.Error("expected customers sync to fail")
	}
	if !batch.Results[0].Success || !batch.Results[2].Success {
		t.Error("expected orders and items syncs to succeed")
	}
}

func TestSyncService_SyncMultiple_EmptyRequest(t *testing.T) {
	conn := &stubConnector{rows: map[string][][]any{}}
	svc := newTestSyncService(t, conn, &stubLoader{}, &stubMetadataService{})

	if _, err := svc.SyncMultiple(context.Background(), uuid.New(), nil); err == nil {
		t.Fatal("expected error for empty table list")
	}
}

func TestSyncService_SyncMultiple_ManyTables(t *testing.T) {
	rows := make(map[string][][]any)
	reqs := make([]SyncRequest, 20)
	for i := range reqs {
		name := fmt.Sprintf("table_%02d", i)
		rows[name] = [][]any{{int64(i)}}
		reqs[i] = SyncRequest{SourceTable: name, TargetTable: name}
	}
	conn := &stubConnector{rows: rows}
	loader := &stubLoader{}
	svc := newTestSyncService(t, conn, loader, &stubMetadataService{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		batch, err := svc.SyncMultiple(context.Background(), uuid.New(), reqs)
		if err != nil {
			t.Errorf("SyncMultiple returned error: %v", err)
			return
		}
		if batch.SuccessCount != 20 {
			t.Errorf("expected 20 successes, got %d", batch.SuccessCount)
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("SyncMultiple deadlocked")
	}
}
