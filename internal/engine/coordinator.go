package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nmsplatform/tablemetrics/internal/db"
)

// maxErrorMessageLen bounds the error text stored on a FAILED run header.
const maxErrorMessageLen = 4000

// Coordinator sequences one measurement run as a single logical unit of
// work. Policy is header-durable: the run header commits in its own
// transaction before measurement starts, the work itself (discovery,
// counting, measurement and snapshot writes, success finalize) shares a
// second transaction, and a failure finalizes the header to FAILED in a
// fresh best-effort transaction. The audit trail therefore always shows
// the attempt, even when all measurement data rolled back.
type Coordinator struct {
	store         Store
	logger        *slog.Logger
	tz            *time.Location
	systemSchemas map[string]bool
	collectSizes  bool

	now func() time.Time
}

// NewCoordinator creates a coordinator for the given store.
func NewCoordinator(store Store, cfg Config, logger *slog.Logger) (*Coordinator, error) {
	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	system := map[string]bool{"temp": true}
	for _, s := range cfg.SystemSchemas {
		system[s] = true
	}

	return &Coordinator{
		store:         store,
		logger:        logger,
		tz:            tz,
		systemSchemas: system,
		collectSizes:  cfg.CollectSizes,
		now:           time.Now,
	}, nil
}

// Execute runs the full workflow for one request. On failure after the
// run header was created, the returned Result still carries the run id
// so callers can report which attempt failed.
func (c *Coordinator) Execute(req Request) (*Result, error) {
	spec, err := c.validate(req)
	if err != nil {
		return nil, err
	}

	res := &Result{BusinessDate: spec.businessDate}

	// Step 1: run header, own transaction
	runID, err := c.store.OpenRun(spec.businessDate, spec.auditSkipSchemas, spec.auditExcludeTables)
	if err != nil {
		return res, &PersistenceError{Op: "run open", Err: err}
	}
	res.RunID = runID

	c.logger.Info("run opened",
		"run_id", runID,
		"mode", string(spec.mode),
		"business_date", spec.businessDate,
		"exact", spec.exact)

	// Steps 2-6: one transaction; any failure rolls all of it back
	err = c.store.InUnit(func(u Unit) error {
		targets, err := c.resolveTargets(u, spec)
		if err != nil {
			return err
		}

		measurements, err := c.collect(u, runID, spec, targets)
		if err != nil {
			return err
		}

		if err := u.InsertMeasurements(measurements); err != nil {
			return &PersistenceError{Op: "measurement write", Err: err}
		}

		payload := BuildPayload(measurements)
		applied, err := c.reconcile(u, runID, spec.businessDate, payload)
		if err != nil {
			return err
		}
		if !applied {
			c.logger.Info("daily snapshot unchanged, newer run holds the date",
				"run_id", runID,
				"business_date", spec.businessDate)
		}

		if err := u.FinalizeRun(runID, db.RunStatusSucceeded, nil); err != nil {
			return &PersistenceError{Op: "run finalize", Err: err}
		}

		res.TablesProcessed = len(measurements)
		return nil
	})

	if err != nil {
		c.failRun(runID, err)
		return res, err
	}

	c.logger.Info("run succeeded",
		"run_id", runID,
		"business_date", spec.businessDate,
		"tables_processed", res.TablesProcessed)

	return res, nil
}

// collect measures every target sequentially on the unit's transaction.
// One table at a time keeps the whole run on one coherent
// snapshot-in-time; a single failed query aborts the run.
func (c *Coordinator) collect(u Unit, runID int64, spec *runSpec, targets []db.TablePair) ([]db.Measurement, error) {
	withSizes := c.collectSizes && u.SizesSupported()

	measurements := make([]db.Measurement, 0, len(targets))
	for _, t := range targets {
		var (
			count int64
			err   error
		)
		if spec.exact {
			count, err = u.CountExact(t.SchemaName, t.TableName)
		} else {
			count, err = u.CountApprox(t.SchemaName, t.TableName)
		}
		if err != nil {
			return nil, &CollectionError{Schema: t.SchemaName, Table: t.TableName, Err: err}
		}

		m := db.Measurement{
			RunID:      runID,
			SchemaName: t.SchemaName,
			TableName:  t.TableName,
			RowCount:   count,
		}

		if withSizes {
			total, tableBytes, indexBytes, err := u.Sizes(t.SchemaName, t.TableName)
			if err != nil {
				return nil, &CollectionError{Schema: t.SchemaName, Table: t.TableName, Err: err}
			}
			m.BytesTotal = &total
			m.BytesTable = &tableBytes
			m.BytesIndex = &indexBytes
		}

		measurements = append(measurements, m)
	}

	return measurements, nil
}

// failRun finalizes the run header to FAILED in a fresh transaction.
// Best effort: a failure here is logged, never re-raised, so it cannot
// mask the original cause.
func (c *Coordinator) failRun(runID int64, cause error) {
	msg := truncate(cause.Error(), maxErrorMessageLen)
	if err := c.store.FinalizeRun(runID, db.RunStatusFailed, &msg); err != nil {
		c.logger.Error("failed to mark run FAILED",
			"run_id", runID,
			"error", err,
			"original_error", cause)
		return
	}

	c.logger.Error("run failed", "run_id", runID, "error", cause)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
