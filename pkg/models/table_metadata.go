package models

import "time"

// Metadata provenance values.
const (
	SourceTypeExcel        = "excel"
	SourceTypeDatabaseSync = "database_sync"
)

// TableMetadata is per-table descriptive metadata keyed by warehouse table
// name. Description is user-owned; AutoDescription and AnalyzedAt are
// system-owned and refreshed on every successful sync. A refresh never
// overwrites a user-supplied Description.
type TableMetadata struct {
	TableName       string     `json:"table_name"`
	DisplayName     string     `json:"display_name"`
	Description     string     `json:"description"`
	AutoDescription string     `json:"auto_description"`
	SourceType      string     `json:"source_type"`
	AnalyzedAt      *time.Time `json:"analyzed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// EffectiveDescription returns the user description when present, falling
// back to the machine-generated one.
func (m *TableMetadata) EffectiveDescription() string {
	if m.Description != "" {
		return m.Description
	}
	return m.AutoDescription
}
