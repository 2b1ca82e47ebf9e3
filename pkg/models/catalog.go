package models

// RemoteTable is one table reported by a source's catalog. EstimatedRows
// comes from engine statistics and is advisory only.
type RemoteTable struct {
	Name          string `json:"name"`
	EstimatedRows int64  `json:"estimated_rows"`
}

// PreviewColumn is one column of a previewed table.
type PreviewColumn struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Comment string `json:"comment,omitempty"`
}

// TablePreview is a bounded sample of a remote table: resolved schema, exact
// total row count, and up to the requested cap of rows.
type TablePreview struct {
	Table     string          `json:"table"`
	Columns   []PreviewColumn `json:"columns"`
	TotalRows int64           `json:"total_rows"`
	Rows      [][]any         `json:"rows"`
}
