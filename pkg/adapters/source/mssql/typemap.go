package mssql

import (
	"strings"

	"github.com/quarrydata/sync-engine/pkg/adapters/source"
	"github.com/quarrydata/sync-engine/pkg/apperrors"
)

// typeMap is the explicit SQL Server-to-warehouse type mapping table.
var typeMap = map[string]string{
	"tinyint":          "SMALLINT",
	"smallint":         "SMALLINT",
	"int":              "INTEGER",
	"bigint":           "BIGINT",
	"bit":              "BOOLEAN",
	"real":             "REAL",
	"float":            "DOUBLE PRECISION",
	"money":            "NUMERIC(19,4)",
	"smallmoney":       "NUMERIC(10,4)",
	"date":             "DATE",
	"time":             "TIME",
	"datetime":         "TIMESTAMP",
	"datetime2":        "TIMESTAMP",
	"smalldatetime":    "TIMESTAMP",
	"datetimeoffset":   "TIMESTAMPTZ",
	"text":             "TEXT",
	"ntext":            "TEXT",
	"xml":              "TEXT",
	"binary":           "BYTEA",
	"varbinary":        "BYTEA",
	"image":            "BYTEA",
	"uniqueidentifier": "UUID",
}

// MapColumnType maps one SQL Server column to its warehouse type.
func (c *Connector) MapColumnType(table string, col source.Column) (string, error) {
	dataType := strings.ToLower(col.DataType)
	columnType := strings.ToLower(col.ColumnType)

	switch dataType {
	case "decimal", "numeric":
		if idx := strings.Index(columnType, "("); idx >= 0 {
			return "NUMERIC" + columnType[idx:], nil
		}
		return "NUMERIC", nil
	case "char", "nchar":
		if idx := strings.Index(columnType, "("); idx >= 0 && !strings.Contains(columnType, "max") {
			return "CHAR" + columnType[idx:], nil
		}
		return "CHAR(1)", nil
	case "varchar", "nvarchar":
		if strings.Contains(columnType, "max") {
			return "TEXT", nil
		}
		if idx := strings.Index(columnType, "("); idx >= 0 {
			return "VARCHAR" + columnType[idx:], nil
		}
		return "TEXT", nil
	}

	if mapped, ok := typeMap[dataType]; ok {
		return mapped, nil
	}

	return "", &apperrors.SchemaError{Table: table, Column: col.Name, SourceType: col.ColumnType}
}
