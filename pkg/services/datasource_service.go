package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrydata/sync-engine/pkg/adapters/source"
	"github.com/quarrydata/sync-engine/pkg/apperrors"
	"github.com/quarrydata/sync-engine/pkg/config"
	"github.com/quarrydata/sync-engine/pkg/crypto"
	"github.com/quarrydata/sync-engine/pkg/models"
	"github.com/quarrydata/sync-engine/pkg/repositories"
)

// ConnectionParams are the unsaved connection details used by a connection test.
type ConnectionParams struct {
	SourceType string
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
}

// DatasourceService manages source connection profiles and the remote catalog.
type DatasourceService interface {
	// TestConnection verifies reachability and credentials, returning the
	// databases visible to the credential. Nothing is persisted and no
	// session outlives the call.
	TestConnection(ctx context.Context, params ConnectionParams) ([]string, error)

	// Save persists a profile. The caller is expected to have already run a
	// successful connection test; Save validates shape only.
	Save(ctx context.Context, ds *models.DataSource, password string) error

	// Get retrieves one profile.
	Get(ctx context.Context, id uuid.UUID) (*models.DataSource, error)

	// List retrieves all profiles.
	List(ctx context.Context) ([]*models.DataSource, error)

	// Delete removes a profile. Its sync tasks are cascade-deleted.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListTables enumerates the remote catalog with estimated row counts.
	ListTables(ctx context.Context, id uuid.UUID) ([]source.TableInfo, error)

	// Preview fetches schema plus up to rowCap sample rows for one remote table.
	Preview(ctx context.Context, id uuid.UUID, table string, rowCap int) (*models.TablePreview, error)
}

type datasourceService struct {
	repo      repositories.DatasourceRepository
	encryptor *crypto.Encryptor
	cfg       config.SyncConfig
	logger    *zap.Logger
}

// NewDatasourceService creates a new datasource service.
func NewDatasourceService(
	repo repositories.DatasourceRepository,
	encryptor *crypto.Encryptor,
	cfg config.SyncConfig,
	logger *zap.Logger,
) DatasourceService {
	return &datasourceService{
		repo:      repo,
		encryptor: encryptor,
		cfg:       cfg,
		logger:    logger.Named("datasource-service"),
	}
}

var _ DatasourceService = (*datasourceService)(nil)

func (s *datasourceService) connectTimeout() time.Duration {
	return time.Duration(s.cfg.ConnectTimeoutSeconds) * time.Second
}

func (s *datasourceService) TestConnection(ctx context.Context, params ConnectionParams) ([]string, error) {
	sourceType := params.SourceType
	if sourceType == "" {
		sourceType = "mysql"
	}
	if !source.IsRegistered(sourceType) {
		return nil, fmt.Errorf("unsupported source type %q: %w", sourceType, apperrors.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, s.connectTimeout())
	defer cancel()

	conn, err := source.Open(ctx, sourceType, map[string]any{
		"host":     params.Host,
		"port":     params.Port,
		"user":     params.User,
		"password": params.Password,
		"database": params.Database,
	})
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return conn.ListDatabases(ctx)
}

func (s *datasourceService) Save(ctx context.Context, ds *models.DataSource, password string) error {
	if ds.Name == "" {
		return fmt.Errorf("datasource name is required: %w", apperrors.ErrInvalidInput)
	}
	if ds.Host == "" {
		return fmt.Errorf("host is required: %w", apperrors.ErrInvalidInput)
	}
	if ds.Database == "" {
		return fmt.Errorf("a database must be chosen before saving: %w", apperrors.ErrInvalidInput)
	}
	if ds.SourceType == "" {
		ds.SourceType = "mysql"
	}
	if !source.IsRegistered(ds.SourceType) {
		return fmt.Errorf("unsupported source type %q: %w", ds.SourceType, apperrors.ErrInvalidInput)
	}
	if ds.Port == 0 {
		ds.Port = 3306
	}

	encrypted, err := s.encryptor.Encrypt(password)
	if err != nil {
		return fmt.Errorf("failed to encrypt password: %w", err)
	}
	ds.Password = encrypted

	if err := s.repo.Create(ctx, ds); err != nil {
		return err
	}

	s.logger.Info("Datasource saved",
		zap.String("id", ds.ID.String()),
		zap.String("name", ds.Name),
		zap.String("source_type", ds.SourceType))
	return nil
}

func (s *datasourceService) Get(ctx context.Context, id uuid.UUID) (*models.DataSource, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *datasourceService) List(ctx context.Context) ([]*models.DataSource, error) {
	return s.repo.List(ctx)
}

func (s *datasourceService) Delete(ctx context.Context, id uuid.UUID) error {
	// Cascade policy: referencing sync tasks go with the datasource rather
	// than blocking the delete. Log how many so the operator can tell.
	taskCount, err := s.repo.CountTasks(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Datasource deleted",
		zap.String("id", id.String()),
		zap.Int("cascaded_tasks", taskCount))
	return nil
}

// openConnector decrypts the stored credential and opens a connector for a
// saved profile.
func (s *datasourceService) openConnector(ctx context.Context, ds *models.DataSource) (source.Connector, error) {
	password, err := s.encryptor.Decrypt(ds.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCredentialsKeyMismatch, err)
	}

	return source.Open(ctx, ds.SourceType, ds.ConnConfig(password))
}

func (s *datasourceService) ListTables(ctx context.Context, id uuid.UUID) ([]source.TableInfo, error) {
	ds, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.connectTimeout())
	defer cancel()

	conn, err := s.openConnector(ctx, ds)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return conn.ListTables(ctx)
}

func (s *datasourceService) Preview(ctx context.Context, id uuid.UUID, table string, rowCap int) (*models.TablePreview, error) {
	if rowCap <= 0 {
		rowCap = s.cfg.PreviewDefaultRows
	}
	if rowCap > s.cfg.PreviewMaxRows {
		rowCap = s.cfg.PreviewMaxRows
	}

	ds, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.connectTimeout())
	defer cancel()

	conn, err := s.openConnector(ctx, ds)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	schema, err := conn.TableSchema(ctx, table)
	if err != nil {
		return nil, err
	}

	total, err := conn.CountRows(ctx, table)
	if err != nil {
		return nil, err
	}

	rows, err := conn.SampleRows(ctx, table, rowCap)
	if err != nil {
		return nil, err
	}

	preview := &models.TablePreview{
		Table:     table,
		Columns:   make([]models.PreviewColumn, len(schema)),
		TotalRows: total,
		Rows:      rows,
	}
	for i, col := range schema {
		preview.Columns[i] = models.PreviewColumn{
			Name:    col.Name,
			Type:    col.ColumnType,
			Comment: col.Comment,
		}
	}
	return preview, nil
}
