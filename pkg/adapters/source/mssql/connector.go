package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"time"

	mssqldb "github.com/microsoft/go-mssqldb"

	"github.com/quarrydata/sync-engine/pkg/adapters/source"
	"github.com/quarrydata/sync-engine/pkg/apperrors"
)

// Connector implements source.Connector for SQL Server.
type Connector struct {
	db  *sql.DB
	cfg *Config
}

// NewConnector opens a pooled connection and verifies it.
func NewConnector(ctx context.Context, cfg *Config) (*Connector, error) {
	db, err := sql.Open("sqlserver", cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("opening connection: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	c := &Connector{db: db, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Connector) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (c *Connector) Close() error {
	return c.db.Close()
}

func (c *Connector) ListDatabases(ctx context.Context) ([]string, error) {
	// database_id <= 4 are master, tempdb, model, msdb.
	rows, err := c.db.QueryContext(ctx,
		`SELECT name FROM sys.databases WHERE database_id > 4 ORDER BY name`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var databases []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning database name: %w", err)
		}
		databases = append(databases, name)
	}
	return databases, rows.Err()
}

func (c *Connector) ListTables(ctx context.Context) ([]source.TableInfo, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT t.name, COALESCE(SUM(p.rows), 0)
		FROM sys.tables t
		JOIN sys.partitions p ON p.object_id = t.object_id AND p.index_id IN (0, 1)
		GROUP BY t.name
		ORDER BY t.name`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var tables []source.TableInfo
	for rows.Next() {
		var t source.TableInfo
		if err := rows.Scan(&t.Name, &t.EstimatedRows); err != nil {
			return nil, fmt.Errorf("scanning table info: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (c *Connector) TableSchema(ctx context.Context, table string) ([]source.Column, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT
			COLUMN_NAME,
			DATA_TYPE,
			CASE
				WHEN CHARACTER_MAXIMUM_LENGTH = -1 THEN DATA_TYPE + '(max)'
				WHEN CHARACTER_MAXIMUM_LENGTH IS NOT NULL
					THEN DATA_TYPE + '(' + CAST(CHARACTER_MAXIMUM_LENGTH AS varchar(10)) + ')'
				WHEN DATA_TYPE IN ('decimal', 'numeric')
					THEN DATA_TYPE + '(' + CAST(NUMERIC_PRECISION AS varchar(10)) + ',' + CAST(NUMERIC_SCALE AS varchar(10)) + ')'
				ELSE DATA_TYPE
			END,
			IS_NULLABLE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = 'dbo' AND TABLE_NAME = @p1
		ORDER BY ORDINAL_POSITION`, table)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var cols []source.Column
	for rows.Next() {
		var col source.Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.DataType, &col.ColumnType, &nullable); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		col.Nullable = nullable == "YES"
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %q: %w", table, apperrors.ErrNotFound)
	}
	return cols, nil
}

func (c *Connector) CountRows(ctx context.Context, table string) (int64, error) {
	if !source.ValidIdentifier(table) {
		return 0, fmt.Errorf("invalid table name %q: %w", table, apperrors.ErrInvalidInput)
	}

	var count int64
	err := c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT_BIG(*) FROM [%s]", table)).Scan(&count)
	if err != nil {
		return 0, classify(err)
	}
	return count, nil
}

func (c *Connector) SampleRows(ctx context.Context, table string, limit int) ([][]any, error) {
	if !source.ValidIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q: %w", table, apperrors.ErrInvalidInput)
	}

	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("SELECT TOP (%d) * FROM [%s]", limit, table))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}

	var result [][]any
	for rows.Next() {
		row, err := scanRow(rows, len(cols))
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// ReadTable streams the table in chunkSize batches over a single cursor.
// Every send races ctx cancellation so an abandoned consumer cannot strand
// the goroutine or its open cursor.
func (c *Connector) ReadTable(ctx context.Context, table string, cols []source.Column, chunkSize int) <-chan source.Batch {
	batches := make(chan source.Batch, 1)

	go func() {
		defer close(batches)

		send := func(b source.Batch) bool {
			select {
			case batches <- b:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !source.ValidIdentifier(table) {
			send(source.Batch{Err: fmt.Errorf("invalid table name %q: %w", table, apperrors.ErrInvalidInput), Done: true})
			return
		}

		colList := ""
		for i, col := range cols {
			if i > 0 {
				colList += ", "
			}
			colList += "[" + col.Name + "]"
		}

		rows, err := c.db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM [%s]", colList, table))
		if err != nil {
			send(source.Batch{Err: classify(err), Done: true})
			return
		}
		defer rows.Close()

		for {
			batch := source.Batch{}
			for i := 0; i < chunkSize && rows.Next(); i++ {
				row, err := scanRow(rows, len(cols))
				if err != nil {
					send(source.Batch{Err: err, Done: true})
					return
				}
				batch.Rows = append(batch.Rows, row)
			}

			if err := rows.Err(); err != nil {
				send(source.Batch{Err: classify(err), Done: true})
				return
			}
			if ctx.Err() != nil {
				send(source.Batch{Err: ctx.Err(), Done: true})
				return
			}

			if len(batch.Rows) < chunkSize {
				batch.Done = true
			}
			if !send(batch) || batch.Done {
				return
			}
		}
	}()

	return batches
}

func scanRow(rows *sql.Rows, width int) ([]any, error) {
	row := make([]any, width)
	ptrs := make([]any, width)
	for j := range row {
		ptrs[j] = &row[j]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scanning row: %w", err)
	}
	for j, v := range row {
		if b, ok := v.([]byte); ok {
			row[j] = string(b)
		}
	}
	return row, nil
}

// SQL Server error number for a failed login.
const errLoginFailed = 18456

func classify(err error) error {
	if err == nil {
		return nil
	}

	var srvErr mssqldb.Error
	if errors.As(err, &srvErr) {
		if srvErr.Number == errLoginFailed {
			return apperrors.NewConnectionError(apperrors.ReasonAuth, err)
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewConnectionError(apperrors.ReasonTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return apperrors.NewConnectionError(apperrors.ReasonTimeout, err)
		}
		return apperrors.NewConnectionError(apperrors.ReasonNetwork, err)
	}

	return apperrors.NewConnectionError(apperrors.ReasonUnknown, err)
}

var _ source.Connector = (*Connector)(nil)
