package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrydata/sync-engine/pkg/adapters/source"
	"github.com/quarrydata/sync-engine/pkg/apperrors"
	"github.com/quarrydata/sync-engine/pkg/config"
	"github.com/quarrydata/sync-engine/pkg/crypto"
	"github.com/quarrydata/sync-engine/pkg/logging"
	"github.com/quarrydata/sync-engine/pkg/models"
	"github.com/quarrydata/sync-engine/pkg/repositories"
	"github.com/quarrydata/sync-engine/pkg/warehouse"
)

// SyncRequest names one table to copy from a datasource into the warehouse.
type SyncRequest struct {
	SourceTable string `json:"source_table"`
	TargetTable string `json:"target_table"`
}

// TableLoader is the warehouse side of a sync: target DDL plus the atomic
// truncate-and-reload. Satisfied by *warehouse.Loader.
type TableLoader interface {
	EnsureTable(ctx context.Context, table string, cols []warehouse.TargetColumn) error
	Load(ctx context.Context, table string, cols []warehouse.TargetColumn, batches <-chan source.Batch) (int64, error)
}

// SyncService copies tables from registered datasources into the warehouse.
type SyncService interface {
	// SyncOne copies a single table. The outcome, success or failure, is
	// reported in the result; per-table failures are not returned as errors.
	SyncOne(ctx context.Context, datasourceID uuid.UUID, sourceTable, targetTable string) models.SyncResult

	// SyncMultiple copies several tables from one datasource concurrently.
	// Results are returned in request order and each table fails or succeeds
	// independently.
	SyncMultiple(ctx context.Context, datasourceID uuid.UUID, reqs []SyncRequest) (*models.BatchSyncResult, error)
}

type syncService struct {
	dsRepo    repositories.DatasourceRepository
	metadata  MetadataService
	loader    TableLoader
	encryptor *crypto.Encryptor
	cfg       config.SyncConfig
	logger    *zap.Logger
}

// NewSyncService creates a new sync service.
func NewSyncService(
	dsRepo repositories.DatasourceRepository,
	metadata MetadataService,
	loader TableLoader,
	encryptor *crypto.Encryptor,
	cfg config.SyncConfig,
	logger *zap.Logger,
) SyncService {
	return &syncService{
		dsRepo:    dsRepo,
		metadata:  metadata,
		loader:    loader,
		encryptor: encryptor,
		cfg:       cfg,
		logger:    logger.Named("sync-service"),
	}
}

var _ SyncService = (*syncService)(nil)

func (s *syncService) openConnector(ctx context.Context, datasourceID uuid.UUID) (source.Connector, error) {
	ds, err := s.dsRepo.GetByID(ctx, datasourceID)
	if err != nil {
		return nil, err
	}

	password, err := s.encryptor.Decrypt(ds.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCredentialsKeyMismatch, err)
	}

	return source.Open(ctx, ds.SourceType, ds.ConnConfig(password))
}

// syncTable copies one table through the connector into the warehouse:
// schema, type mapping, target DDL, then a streamed atomic load.
func (s *syncService) syncTable(ctx context.Context, conn source.Connector, sourceTable, targetTable string) (int64, []warehouse.TargetColumn, error) {
	if !source.ValidIdentifier(sourceTable) {
		return 0, nil, fmt.Errorf("invalid source table name %q: %w", sourceTable, apperrors.ErrInvalidInput)
	}
	if !source.ValidIdentifier(targetTable) {
		return 0, nil, fmt.Errorf("invalid target table name %q: %w", targetTable, apperrors.ErrInvalidInput)
	}

	schema, err := conn.TableSchema(ctx, sourceTable)
	if err != nil {
		return 0, nil, err
	}

	cols := make([]warehouse.TargetColumn, len(schema))
	for i, col := range schema {
		mapped, err := conn.MapColumnType(sourceTable, col)
		if err != nil {
			return 0, nil, err
		}
		cols[i] = warehouse.TargetColumn{Name: col.Name, Type: mapped}
	}

	if err := s.loader.EnsureTable(ctx, targetTable, cols); err != nil {
		return 0, nil, err
	}

	// The load owns the stream's lifetime: cancelling on exit unblocks the
	// connector's producer when the load bails out mid-stream.
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	batches := conn.ReadTable(readCtx, sourceTable, schema, s.cfg.BatchSize)
	rows, err := s.loader.Load(readCtx, targetTable, cols, batches)
	if err != nil {
		return 0, nil, err
	}

	return rows, cols, nil
}

// syncWith runs one table sync over an already open connector and folds the
// outcome into a result. Failures never escape as errors; they are captured,
// sanitized, and reported.
func (s *syncService) syncWith(ctx context.Context, conn source.Connector, sourceTable, targetTable string) models.SyncResult {
	result := models.SyncResult{
		SourceTable: sourceTable,
		TargetTable: targetTable,
	}

	rows, cols, err := s.syncTable(ctx, conn, sourceTable, targetTable)
	if err != nil {
		result.Error = logging.SanitizeError(err)
		s.logger.Warn("Table sync failed",
			zap.String("source_table", sourceTable),
			zap.String("target_table", targetTable),
			zap.String("error", result.Error))
		return result
	}

	result.Success = true
	result.RowsSynced = rows

	if err := s.metadata.RefreshAfterSync(ctx, targetTable, models.SourceTypeDatabaseSync, rows, cols); err != nil {
		// The data landed; a stale description is not a sync failure.
		s.logger.Warn("Metadata refresh failed after sync",
			zap.String("target_table", targetTable),
			zap.Error(err))
	}

	s.logger.Info("Table synced",
		zap.String("source_table", sourceTable),
		zap.String("target_table", targetTable),
		zap.Int64("rows", rows))
	return result
}

func (s *syncService) SyncOne(ctx context.Context, datasourceID uuid.UUID, sourceTable, targetTable string) models.SyncResult {
	conn, err := s.openConnector(ctx, datasourceID)
	if err != nil {
		return models.SyncResult{
			SourceTable: sourceTable,
			TargetTable: targetTable,
			Error:       logging.SanitizeError(err),
		}
	}
	defer conn.Close()

	return s.syncWith(ctx, conn, sourceTable, targetTable)
}

func (s *syncService) SyncMultiple(ctx context.Context, datasourceID uuid.UUID, reqs []SyncRequest) (*models.BatchSyncResult, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("no tables requested: %w", apperrors.ErrInvalidInput)
	}

	conn, err := s.openConnector(ctx, datasourceID)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// Bounded fan-out over a shared connector pool. Results land at their
	// request index so the response order matches the request order.
	results := make([]models.SyncResult, len(reqs))
	sem := make(chan struct{}, s.cfg.MaxWorkers)
	var wg sync.WaitGroup

	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req SyncRequest) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = s.syncWith(ctx, conn, req.SourceTable, req.TargetTable)
		}(i, req)
	}
	wg.Wait()

	batch := &models.BatchSyncResult{Results: results}
	for _, r := range results {
		if r.Success {
			batch.SuccessCount++
		} else {
			batch.FailCount++
		}
	}
	batch.Success = batch.FailCount == 0

	s.logger.Info("Batch sync finished",
		zap.String("datasource_id", datasourceID.String()),
		zap.Int("succeeded", batch.SuccessCount),
		zap.Int("failed", batch.FailCount))
	return batch, nil
}
