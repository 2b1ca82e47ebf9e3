// Package source defines the adapter layer for external source databases.
// Each supported engine registers a Connector factory; the sync and catalog
// services speak only to this interface.
package source

import (
	"context"
	"regexp"
)

// Column describes one column of a source table.
type Column struct {
	Name string `json:"name"`
	// DataType is the base type name, e.g. "varchar".
	DataType string `json:"data_type"`
	// ColumnType is the full declared type, e.g. "varchar(255) unsigned".
	ColumnType string `json:"column_type"`
	Nullable   bool   `json:"nullable"`
	Comment    string `json:"comment,omitempty"`
}

// TableInfo is one table in the source catalog. EstimatedRows comes from
// engine statistics, not a COUNT(*), and is advisory only.
type TableInfo struct {
	Name          string `json:"name"`
	EstimatedRows int64  `json:"estimated_rows"`
}

// Batch is one chunk of streamed rows. The final batch has Done set; a
// stream that failed mid-read carries the error on its final batch.
type Batch struct {
	Rows [][]any
	Err  error
	Done bool
}

// Connector is a live connection to one source database. Implementations own
// their connection pool and must be closed when done. All errors arising
// from transport or credentials are classified into *apperrors.ConnectionError.
type Connector interface {
	// Ping verifies the source is reachable with valid credentials.
	Ping(ctx context.Context) error

	// ListDatabases enumerates databases visible to the credential,
	// excluding engine system schemas.
	ListDatabases(ctx context.Context) ([]string, error)

	// ListTables enumerates base tables in the bound database with
	// estimated row counts.
	ListTables(ctx context.Context) ([]TableInfo, error)

	// TableSchema returns the ordered column list for a table.
	// Returns apperrors.ErrNotFound if the table does not exist.
	TableSchema(ctx context.Context, table string) ([]Column, error)

	// CountRows returns the exact row count of a table.
	CountRows(ctx context.Context, table string) (int64, error)

	// SampleRows fetches up to limit rows in column order.
	SampleRows(ctx context.Context, table string, limit int) ([][]any, error)

	// ReadTable streams the whole table in bounded batches of chunkSize
	// rows. The channel is closed after the final batch. Cancelling ctx
	// terminates the stream with a ctx error on the final batch.
	ReadTable(ctx context.Context, table string, cols []Column, chunkSize int) <-chan Batch

	// MapColumnType maps a source column type to a warehouse (PostgreSQL)
	// type using the engine's explicit mapping table. An unmappable type
	// returns *apperrors.SchemaError naming the column.
	MapColumnType(table string, col Column) (string, error)

	// Close releases the connection pool.
	Close() error
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is safe to interpolate as a table
// identifier. Table names cannot be bound as query parameters, so every
// adapter must reject names that fail this check.
func ValidIdentifier(name string) bool {
	return len(name) <= 64 && identifierPattern.MatchString(name)
}
