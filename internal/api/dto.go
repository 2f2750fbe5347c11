package api

import (
	"time"

	"github.com/nmsplatform/tablemetrics/internal/db"
)

// ExecuteResponse is the synchronous outcome of an invocation. On error,
// Status is "error", Message carries the failure description and RunID
// is present when a run header was created before the failure.
type ExecuteResponse struct {
	Status          string `json:"status"`
	RunID           *int64 `json:"runId,omitempty"`
	BusinessDate    string `json:"businessDate,omitempty"`
	TablesProcessed *int   `json:"tablesProcessed,omitempty"`
	Message         string `json:"message,omitempty"`
}

// RunResponse is one run header
type RunResponse struct {
	RunID         int64     `json:"runId"`
	CollectedAt   time.Time `json:"collectedAt"`
	BusinessDate  string    `json:"businessDate"`
	Status        string    `json:"status"`
	ErrorMessage  *string   `json:"errorMessage,omitempty"`
	SkipSchemas   []string  `json:"skipSchemas"`
	ExcludeTables []string  `json:"excludeTables"`
}

func toRunResponse(r *db.Run) RunResponse {
	return RunResponse{
		RunID:         r.RunID,
		CollectedAt:   r.CollectedAt,
		BusinessDate:  r.SnapshotDate,
		Status:        r.Status,
		ErrorMessage:  r.ErrorMessage,
		SkipSchemas:   r.SkipSchemas,
		ExcludeTables: r.ExcludeTables,
	}
}

// MeasurementResponse is one measurement fact row
type MeasurementResponse struct {
	RunID      int64  `json:"runId"`
	Schema     string `json:"schema"`
	Table      string `json:"table"`
	RowCount   int64  `json:"rowCount"`
	BytesTotal *int64 `json:"bytesTotal,omitempty"`
	BytesTable *int64 `json:"bytesTable,omitempty"`
	BytesIndex *int64 `json:"bytesIndex,omitempty"`
}

// SnapshotResponse serves both snapshot views; RunID is null on a daily
// row that has been reset to accept any writer.
type SnapshotResponse struct {
	RunID        *int64     `json:"runId"`
	BusinessDate string     `json:"businessDate,omitempty"`
	Payload      db.Payload `json:"payload"`
	CollectedAt  time.Time  `json:"collectedAt"`
}

// TargetRequest registers or updates a registry entry
type TargetRequest struct {
	Schema  string `json:"schema"`
	Table   string `json:"table"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// TargetResponse is one registry entry
type TargetResponse struct {
	Schema    string    `json:"schema"`
	Table     string    `json:"table"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
}

// ErrorResponse is the generic error shape for the read endpoints
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
