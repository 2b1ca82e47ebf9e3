package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncTask is a persisted recurring instruction to copy one table from a
// DataSource into the warehouse. At most one active task exists per
// (datasource, source_table, target_table) triple.
type SyncTask struct {
	ID           uuid.UUID  `json:"id"`
	DatasourceID uuid.UUID  `json:"datasource_id"`
	SourceTable  string     `json:"source_table"`
	TargetTable  string     `json:"target_table"`
	Recurrence   Recurrence `json:"-"`
	EnabledForAI bool       `json:"enabled_for_ai"`

	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	LastRunSuccess *bool      `json:"last_run_success,omitempty"`
	LastRunRows    *int64     `json:"last_run_rows,omitempty"`
	LastRunError   string     `json:"last_run_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SyncRun is the outcome of one task firing, recorded on the task row.
type SyncRun struct {
	At      time.Time
	Success bool
	Rows    int64
	Error   string
}
