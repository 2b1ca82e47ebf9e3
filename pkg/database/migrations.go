package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// RunMigrations brings the engine's own tables (datasources, sync tasks,
// table metadata) up to the current schema version. Already-applied versions
// are skipped, so it runs on every boot. The version bookkeeping lives in
// engine_schema_migrations to stay clear of synced warehouse tables.
func RunMigrations(db *sql.DB, migrationsPath string, logger *zap.Logger) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "engine_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("reading migrations from %s: %w", migrationsPath, err)
	}

	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("Failed to close migration source", zap.Error(srcErr))
		}
		if dbErr != nil {
			logger.Warn("Failed to close migration database", zap.Error(dbErr))
		}
	}()

	before, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("reading schema version: %w", err)
	}

	switch err := m.Up(); {
	case err == nil:
		after, _, _ := m.Version()
		logger.Info("Engine schema migrated",
			zap.Uint("from_version", before),
			zap.Uint("to_version", after))
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("Engine schema already current", zap.Uint("version", before))
	default:
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}
