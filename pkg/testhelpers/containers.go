// Package testhelpers provides shared database fixtures for integration tests.
package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/quarrydata/sync-engine/pkg/database"
)

// WarehouseImage is the PostgreSQL image used for integration tests.
const WarehouseImage = "postgres:16-alpine"

// WarehouseDB holds a shared warehouse container with migrations applied.
// Engine tables and sync target tables share this database, the same way
// they do in production.
type WarehouseDB struct {
	Container testcontainers.Container
	DB        *database.DB
	ConnStr   string
}

var (
	sharedWarehouse     *WarehouseDB
	sharedWarehouseOnce sync.Once
	sharedWarehouseErr  error
)

// GetWarehouseDB returns a shared migrated PostgreSQL database for
// integration tests. The container is created once and reused across all
// tests in the run.
func GetWarehouseDB(t *testing.T) *WarehouseDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedWarehouseOnce.Do(func() {
		sharedWarehouse, sharedWarehouseErr = setupWarehouseDB()
	})

	if sharedWarehouseErr != nil {
		t.Fatalf("Failed to setup warehouse database: %v", sharedWarehouseErr)
	}

	return sharedWarehouse
}

func setupWarehouseDB() (*WarehouseDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        WarehouseImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "warehouse_test",
			"POSTGRES_USER":     "warehouse",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://warehouse:test_password@%s:%s/warehouse_test?sslmode=disable",
		host, port.Port())

	db, err := database.Connect(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: 5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to warehouse database: %w", err)
	}

	// Migrations run over database/sql (required by golang-migrate).
	sqlDB, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open sql connection: %w", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, migrationsDir(), zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &WarehouseDB{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
	}, nil
}

// migrationsDir resolves the migrations directory relative to this file, so
// tests work regardless of which package invokes them.
func migrationsDir() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "migrations")
}
