package models

// SyncResult is the per-table outcome of a sync. On failure the partial row
// count is discarded; RowsSynced is only meaningful when Success is true.
type SyncResult struct {
	SourceTable string `json:"source_table"`
	TargetTable string `json:"target_table"`
	Success     bool   `json:"success"`
	RowsSynced  int64  `json:"rows_synced"`
	Error       string `json:"error,omitempty"`
}

// BatchSyncResult aggregates one multi-table sync request. Results preserve
// request order. Success is true iff every member succeeded.
type BatchSyncResult struct {
	Success      bool         `json:"success"`
	SuccessCount int          `json:"success_count"`
	FailCount    int          `json:"fail_count"`
	Results      []SyncResult `json:"results"`
}
