// Package warehouse writes synced tables into the PostgreSQL warehouse.
package warehouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/quarrydata/sync-engine/pkg/adapters/source"
	"github.com/quarrydata/sync-engine/pkg/database"
)

// TargetColumn is one column of a target table: source name plus the mapped
// warehouse type.
type TargetColumn struct {
	Name string
	Type string
}

// Loader creates target tables and performs atomic truncate-and-reload loads.
type Loader struct {
	db     *database.DB
	logger *zap.Logger
}

// NewLoader creates a warehouse loader.
func NewLoader(db *database.DB, logger *zap.Logger) *Loader {
	return &Loader{db: db, logger: logger.Named("warehouse")}
}

// quoteIdent double-quotes a PostgreSQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// EnsureTable creates the target table if it does not exist yet. Existing
// tables are left untouched so repeated syncs keep the original definition.
func (l *Loader) EnsureTable(ctx context.Context, table string, cols []TargetColumn) error {
	defs := make([]string, len(cols))
	for i, col := range cols {
		defs[i] = fmt.Sprintf("%s %s", quoteIdent(col.Name), col.Type)
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
	if _, err := l.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("creating target table %s: %w", table, err)
	}
	return nil
}

// Load replaces the target table's contents with the streamed batches inside
// a single transaction: TRUNCATE, then COPY each batch. Any failure,
// including context cancellation, rolls the whole load back so the table is
// never left partially written. Returns the number of rows loaded.
func (l *Loader) Load(ctx context.Context, table string, cols []TargetColumn, batches <-chan source.Batch) (int64, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s", quoteIdent(table))); err != nil {
		return 0, fmt.Errorf("truncating target table %s: %w", table, err)
	}

	colNames := make([]string, len(cols))
	for i, col := range cols {
		colNames[i] = col.Name
	}

	var total int64
	for batch := range batches {
		if batch.Err != nil {
			return 0, fmt.Errorf("reading source rows: %w", batch.Err)
		}
		if len(batch.Rows) > 0 {
			n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, colNames, pgx.CopyFromRows(batch.Rows))
			if err != nil {
				return 0, fmt.Errorf("copying rows into %s: %w", table, err)
			}
			total += n
		}
		if batch.Done {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing load: %w", err)
	}

	l.logger.Debug("Table loaded",
		zap.String("table", table),
		zap.Int64("rows", total))
	return total, nil
}

// TableExists reports whether a table exists in the warehouse public schema.
func (l *Loader) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := l.db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)`, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking table existence: %w", err)
	}
	return exists, nil
}

// Describe returns the column names and types of a warehouse table, used to
// regenerate auto descriptions.
func (l *Loader) Describe(ctx context.Context, table string) ([]TargetColumn, error) {
	rows, err := l.db.Query(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("describing table %s: %w", table, err)
	}
	defer rows.Close()

	var cols []TargetColumn
	for rows.Next() {
		var col TargetColumn
		if err := rows.Scan(&col.Name, &col.Type); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// RowCount returns the exact row count of a warehouse table.
func (l *Loader) RowCount(ctx context.Context, table string) (int64, error) {
	var count int64
	err := l.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(table))).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting rows in %s: %w", table, err)
	}
	return count, nil
}
