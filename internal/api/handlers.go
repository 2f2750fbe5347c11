package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nmsplatform/tablemetrics/internal/db"
	"github.com/nmsplatform/tablemetrics/internal/engine"
)

const defaultRunListLimit = 50

// Executor runs one measurement invocation. Satisfied by
// engine.Coordinator.
type Executor interface {
	Execute(req engine.Request) (*engine.Result, error)
}

// Handler holds all dependencies for HTTP handlers
type Handler struct {
	DB       *db.DB
	Executor Executor
	Logger   *slog.Logger
}

// NewHandler creates a new handler
func NewHandler(database *db.DB, executor Executor, logger *slog.Logger) *Handler {
	return &Handler{
		DB:       database,
		Executor: executor,
		Logger:   logger,
	}
}

// ExecuteRun runs the full measurement workflow synchronously.
// POST /api/runs
func (h *Handler) ExecuteRun(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ExecuteResponse{
			Status:  "error",
			Message: "invalid JSON body: " + err.Error(),
		})
		return
	}

	invocationID := uuid.NewString()
	h.Logger.Info("run requested",
		"invocation_id", invocationID,
		"mode", string(req.Mode))

	res, err := h.Executor.Execute(req)
	if err != nil {
		resp := ExecuteResponse{Status: "error", Message: err.Error()}
		if res != nil && res.RunID != 0 {
			resp.RunID = &res.RunID
			resp.BusinessDate = res.BusinessDate
		}

		status := http.StatusInternalServerError
		if engine.IsValidationError(err) || errors.Is(err, engine.ErrNoTargets) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, ExecuteResponse{
		Status:          "ok",
		RunID:           &res.RunID,
		BusinessDate:    res.BusinessDate,
		TablesProcessed: &res.TablesProcessed,
	})
}

// ListRuns returns the most recent run headers.
// GET /api/runs?limit=N
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.DB.ListRuns(limit)
	if err != nil {
		h.serverError(w, "list runs", err)
		return
	}

	resp := make([]RunResponse, 0, len(runs))
	for i := range runs {
		resp = append(resp, toRunResponse(&runs[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRun returns one run header.
// GET /api/runs/{runID}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	run, err := h.DB.GetRun(runID)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.serverError(w, "get run", err)
		return
	}

	writeJSON(w, http.StatusOK, toRunResponse(run))
}

// GetRunMeasurements returns a run's measurement facts.
// GET /api/runs/{runID}/measurements
func (h *Handler) GetRunMeasurements(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	measurements, err := h.DB.GetMeasurements(runID)
	if err != nil {
		h.serverError(w, "get measurements", err)
		return
	}

	resp := make([]MeasurementResponse, 0, len(measurements))
	for _, m := range measurements {
		resp = append(resp, MeasurementResponse{
			RunID:      m.RunID,
			Schema:     m.SchemaName,
			Table:      m.TableName,
			RowCount:   m.RowCount,
			BytesTotal: m.BytesTotal,
			BytesTable: m.BytesTable,
			BytesIndex: m.BytesIndex,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRunSnapshot returns the immutable per-run snapshot.
// GET /api/runs/{runID}/snapshot
func (h *Handler) GetRunSnapshot(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	snap, err := h.DB.GetRunSnapshot(runID)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "run snapshot not found")
			return
		}
		h.serverError(w, "get run snapshot", err)
		return
	}

	writeJSON(w, http.StatusOK, SnapshotResponse{
		RunID:       &snap.RunID,
		Payload:     snap.Payload,
		CollectedAt: snap.CollectedAt,
	})
}

// GetDailySnapshot returns the current view for a business date.
// GET /api/snapshots/daily/{date}
func (h *Handler) GetDailySnapshot(w http.ResponseWriter, r *http.Request) {
	date, ok := h.snapshotDate(w, r)
	if !ok {
		return
	}

	snap, err := h.DB.GetDailySnapshot(date)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "no snapshot for date")
			return
		}
		h.serverError(w, "get daily snapshot", err)
		return
	}

	writeJSON(w, http.StatusOK, SnapshotResponse{
		RunID:        snap.RunID,
		BusinessDate: snap.SnapshotDate,
		Payload:      snap.Payload,
		CollectedAt:  snap.CollectedAt,
	})
}

// ResetDailySnapshot nulls the run id on a daily row so the next run
// repopulates the date regardless of recency.
// POST /api/snapshots/daily/{date}/reset
func (h *Handler) ResetDailySnapshot(w http.ResponseWriter, r *http.Request) {
	date, ok := h.snapshotDate(w, r)
	if !ok {
		return
	}

	if err := h.DB.ClearDailyRunID(date); err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "no snapshot for date")
			return
		}
		h.serverError(w, "reset daily snapshot", err)
		return
	}

	h.Logger.Info("daily snapshot reset", "business_date", date)
	w.WriteHeader(http.StatusNoContent)
}

// ListTargets lists the measurement registry.
// GET /api/targets
func (h *Handler) ListTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := h.DB.ListTargets()
	if err != nil {
		h.serverError(w, "list targets", err)
		return
	}

	resp := make([]TargetResponse, 0, len(targets))
	for _, t := range targets {
		resp = append(resp, TargetResponse{
			Schema:    t.SchemaName,
			Table:     t.TableName,
			Enabled:   t.Enabled,
			CreatedAt: t.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpsertTarget registers a (schema, table) pair or updates its enabled flag.
// PUT /api/targets
func (h *Handler) UpsertTarget(w http.ResponseWriter, r *http.Request) {
	var req TargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	if req.Schema == "" || req.Table == "" {
		writeError(w, http.StatusBadRequest, "schema and table are required")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	if err := h.DB.UpsertTarget(req.Schema, req.Table, enabled); err != nil {
		h.serverError(w, "upsert target", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteTarget removes a registry entry.
// DELETE /api/targets/{schema}/{table}
func (h *Handler) DeleteTarget(w http.ResponseWriter, r *http.Request) {
	schema := chi.URLParam(r, "schema")
	table := chi.URLParam(r, "table")

	if err := h.DB.DeleteTarget(schema, table); err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "target not found")
			return
		}
		h.serverError(w, "delete target", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Helpers

func (h *Handler) runID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "runID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "runID must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) snapshotDate(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "date")
	if _, err := time.Parse(time.DateOnly, raw); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return "", false
	}
	return raw, true
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	h.Logger.Error("request failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Status: "error", Message: message})
}
