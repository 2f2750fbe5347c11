package engine

import (
	"github.com/nmsplatform/tablemetrics/internal/db"
)

// BuildPayload is the pure transform from a flat measurement list into
// the nested schema -> table -> row count shape both snapshot views
// store. Ordering is irrelevant: the payload is consumed as a mapping.
func BuildPayload(measurements []db.Measurement) db.Payload {
	payload := make(db.Payload)
	for _, m := range measurements {
		tables, ok := payload[m.SchemaName]
		if !ok {
			tables = make(map[string]int64)
			payload[m.SchemaName] = tables
		}
		tables[m.TableName] = m.RowCount
	}
	return payload
}

// reconcile materializes both snapshot views from a run's payload: the
// immutable per-run snapshot unconditionally, then the daily snapshot
// under the recency rule. Returns whether the daily view actually
// changed; false means a newer run already owns the business date, which
// is a normal outcome for late-committing retries.
func (c *Coordinator) reconcile(u Unit, runID int64, businessDate string, payload db.Payload) (bool, error) {
	if err := u.UpsertRunSnapshot(runID, payload); err != nil {
		return false, &PersistenceError{Op: "run snapshot write", Err: err}
	}

	applied, err := u.UpsertDailySnapshot(runID, businessDate, payload)
	if err != nil {
		return false, &PersistenceError{Op: "daily snapshot write", Err: err}
	}

	return applied, nil
}
