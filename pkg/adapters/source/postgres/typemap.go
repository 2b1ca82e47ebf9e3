package postgres

import (
	"strings"

	"github.com/quarrydata/sync-engine/pkg/adapters/source"
	"github.com/quarrydata/sync-engine/pkg/apperrors"
)

// typeMap is the explicit PostgreSQL-to-warehouse mapping table. The
// warehouse is also PostgreSQL, so most types carry through; the table still
// exists so unmappable types fail loudly instead of producing broken DDL.
var typeMap = map[string]string{
	"smallint":         "SMALLINT",
	"integer":          "INTEGER",
	"bigint":           "BIGINT",
	"real":             "REAL",
	"double precision": "DOUBLE PRECISION",
	"numeric":          "NUMERIC",
	"boolean":          "BOOLEAN",
	"date":             "DATE",
	"time without time zone":      "TIME",
	"timestamp without time zone": "TIMESTAMP",
	"timestamp with time zone":    "TIMESTAMPTZ",
	"interval":          "INTERVAL",
	"text":              "TEXT",
	"character":         "CHAR",
	"character varying": "VARCHAR",
	"bytea":             "BYTEA",
	"uuid":              "UUID",
	"json":              "JSON",
	"jsonb":             "JSONB",
	"inet":              "INET",
	"cidr":              "CIDR",
}

// MapColumnType maps one PostgreSQL column to its warehouse type.
func (c *Connector) MapColumnType(table string, col source.Column) (string, error) {
	dataType := strings.ToLower(col.DataType)

	mapped, ok := typeMap[dataType]
	if !ok {
		return "", &apperrors.SchemaError{Table: table, Column: col.Name, SourceType: col.ColumnType}
	}

	// Carry declared length/precision through for the parameterized types.
	if idx := strings.Index(col.ColumnType, "("); idx >= 0 {
		switch mapped {
		case "NUMERIC", "CHAR", "VARCHAR":
			return mapped + col.ColumnType[idx:], nil
		}
	}
	return mapped, nil
}
