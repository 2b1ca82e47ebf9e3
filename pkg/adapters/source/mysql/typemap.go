package mysql

import (
	"regexp"
	"strings"

	"github.com/quarrydata/sync-engine/pkg/adapters/source"
	"github.com/quarrydata/sync-engine/pkg/apperrors"
)

// typeMap is the explicit MySQL-to-warehouse type mapping table.
// Parameterized types (decimal, char, varchar) are handled separately because
// they carry precision through from the declared column type.
var typeMap = map[string]string{
	"tinyint":    "SMALLINT",
	"smallint":   "SMALLINT",
	"mediumint":  "INTEGER",
	"int":        "INTEGER",
	"integer":    "INTEGER",
	"bigint":     "BIGINT",
	"float":      "REAL",
	"double":     "DOUBLE PRECISION",
	"bit":        "BYTEA",
	"date":       "DATE",
	"datetime":   "TIMESTAMP",
	"timestamp":  "TIMESTAMP",
	"time":       "TIME",
	"year":       "INTEGER",
	"tinytext":   "TEXT",
	"text":       "TEXT",
	"mediumtext": "TEXT",
	"longtext":   "TEXT",
	"enum":       "TEXT",
	"set":        "TEXT",
	"json":       "JSONB",
	"binary":     "BYTEA",
	"varbinary":  "BYTEA",
	"tinyblob":   "BYTEA",
	"blob":       "BYTEA",
	"mediumblob": "BYTEA",
	"longblob":   "BYTEA",
}

var precisionPattern = regexp.MustCompile(`\(\s*\d+\s*(,\s*\d+\s*)?\)`)

// MapColumnType maps one MySQL column to its warehouse type.
func (c *Connector) MapColumnType(table string, col source.Column) (string, error) {
	dataType := strings.ToLower(col.DataType)
	columnType := strings.ToLower(col.ColumnType)

	// tinyint(1) is MySQL's boolean convention.
	if dataType == "tinyint" && strings.HasPrefix(columnType, "tinyint(1)") {
		return "BOOLEAN", nil
	}

	// Unsigned integers need one size up to avoid overflow.
	if strings.Contains(columnType, "unsigned") {
		switch dataType {
		case "tinyint", "smallint", "mediumint":
			return "INTEGER", nil
		case "int", "integer":
			return "BIGINT", nil
		case "bigint":
			return "NUMERIC(20,0)", nil
		}
	}

	switch dataType {
	case "decimal", "numeric":
		if p := precisionPattern.FindString(columnType); p != "" {
			return "NUMERIC" + strings.ReplaceAll(p, " ", ""), nil
		}
		return "NUMERIC", nil
	case "char":
		if p := precisionPattern.FindString(columnType); p != "" {
			return "CHAR" + strings.ReplaceAll(p, " ", ""), nil
		}
		return "CHAR(1)", nil
	case "varchar":
		if p := precisionPattern.FindString(columnType); p != "" {
			return "VARCHAR" + strings.ReplaceAll(p, " ", ""), nil
		}
		return "TEXT", nil
	}

	if mapped, ok := typeMap[dataType]; ok {
		return mapped, nil
	}

	return "", &apperrors.SchemaError{Table: table, Column: col.Name, SourceType: col.ColumnType}
}
