package db

import "time"

// Run statuses. A run is created RUNNING and transitions exactly once to
// SUCCEEDED or FAILED.
const (
	RunStatusRunning   = "RUNNING"
	RunStatusSucceeded = "SUCCEEDED"
	RunStatusFailed    = "FAILED"
)

// Run represents one execution attempt of the measurement workflow.
// RunID is assigned by the store on insert and is strictly increasing
// across all runs; it is the recency key for daily snapshot merges.
type Run struct {
	RunID         int64
	CollectedAt   time.Time
	SnapshotDate  string // business date, YYYY-MM-DD
	Status        string
	ErrorMessage  *string
	SkipSchemas   []string // audit copy of the exclusion parameters
	ExcludeTables []string
}

// Measurement is one table's row count within one run. Byte sizes are
// populated only when the collector's size capability is available.
type Measurement struct {
	RunID      int64
	SchemaName string
	TableName  string
	RowCount   int64
	BytesTotal *int64
	BytesTable *int64
	BytesIndex *int64
}

// Payload is the denormalized snapshot shape: schema -> table -> row count.
type Payload map[string]map[string]int64

// RunSnapshot is the immutable per-run view of a run's measurements.
type RunSnapshot struct {
	RunID       int64
	Payload     Payload
	CollectedAt time.Time
}

// DailySnapshot is the recency-merged current view for a business date.
// RunID is nullable; a null run id accepts any incoming write.
type DailySnapshot struct {
	SnapshotDate string
	RunID        *int64
	Payload      Payload
	CollectedAt  time.Time
}

// Target is one enabled (schema, table) registry entry for catalog mode.
type Target struct {
	SchemaName string
	TableName  string
	Enabled    bool
	CreatedAt  time.Time
}
