package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// querier is the subset of database/sql shared by DB and Tx, so ledger
// operations can run either in their own transaction (header-durable
// open and failure finalize) or inside a run's unit of work.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// CreateRun inserts a run header in the given status and returns the
// store-assigned run id. AUTOINCREMENT on run_id guarantees ids are
// strictly increasing and never reused.
func (db *DB) CreateRun(snapshotDate, status string, skipSchemas, excludeTables []string) (int64, error) {
	return createRun(db, snapshotDate, status, skipSchemas, excludeTables)
}

// CreateRun is the transactional variant, for the fully-atomic policy.
func (tx *Tx) CreateRun(snapshotDate, status string, skipSchemas, excludeTables []string) (int64, error) {
	return createRun(tx, snapshotDate, status, skipSchemas, excludeTables)
}

func createRun(q querier, snapshotDate, status string, skipSchemas, excludeTables []string) (int64, error) {
	skip, err := marshalNames(skipSchemas)
	if err != nil {
		return 0, err
	}
	excl, err := marshalNames(excludeTables)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO table_metrics_runs (snapshot_date, status, skip_schemas, exclude_tables)
		VALUES (?, ?, ?, ?)
	`

	res, err := q.Exec(query, snapshotDate, status, skip, excl)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

// FinalizeRun transitions a RUNNING run to a terminal status. It refuses
// to touch a run that is already terminal, so a double finalize surfaces
// as ErrNotFound instead of silently rewriting history.
func (db *DB) FinalizeRun(runID int64, status string, errorMessage *string) error {
	return finalizeRun(db, runID, status, errorMessage)
}

// FinalizeRun is the transactional variant, used by the coordinator to
// mark success inside the run's unit of work.
func (tx *Tx) FinalizeRun(runID int64, status string, errorMessage *string) error {
	return finalizeRun(tx, runID, status, errorMessage)
}

func finalizeRun(q querier, runID int64, status string, errorMessage *string) error {
	if status != RunStatusSucceeded && status != RunStatusFailed {
		return fmt.Errorf("db: %q is not a terminal run status", status)
	}

	query := `
		UPDATE table_metrics_runs
		SET status = ?, error_message = ?
		WHERE run_id = ? AND status = ?
	`

	res, err := q.Exec(query, status, errorMessage, runID, RunStatusRunning)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// GetRun retrieves a run header by id
func (db *DB) GetRun(runID int64) (*Run, error) {
	run := &Run{}
	var skip, excl string

	query := `
		SELECT run_id, collected_at, snapshot_date, status, error_message, skip_schemas, exclude_tables
		FROM table_metrics_runs
		WHERE run_id = ?
	`

	err := db.QueryRow(query, runID).Scan(
		&run.RunID,
		&run.CollectedAt,
		&run.SnapshotDate,
		&run.Status,
		&run.ErrorMessage,
		&skip,
		&excl,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	if run.SkipSchemas, err = unmarshalNames(skip); err != nil {
		return nil, err
	}
	if run.ExcludeTables, err = unmarshalNames(excl); err != nil {
		return nil, err
	}

	return run, nil
}

// ListRuns retrieves the most recent runs, newest first
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := `
		SELECT run_id, collected_at, snapshot_date, status, error_message, skip_schemas, exclude_tables
		FROM table_metrics_runs
		ORDER BY run_id DESC
		LIMIT ?
	`

	rows, err := db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var skip, excl string
		err := rows.Scan(
			&run.RunID,
			&run.CollectedAt,
			&run.SnapshotDate,
			&run.Status,
			&run.ErrorMessage,
			&skip,
			&excl,
		)
		if err != nil {
			return nil, err
		}
		if run.SkipSchemas, err = unmarshalNames(skip); err != nil {
			return nil, err
		}
		if run.ExcludeTables, err = unmarshalNames(excl); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	// Return empty slice instead of nil
	if runs == nil {
		runs = []Run{}
	}

	return runs, nil
}

func marshalNames(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	b, err := json.Marshal(names)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalNames(raw string) ([]string, error) {
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, err
	}
	return names, nil
}
