package engine

import (
	"github.com/nmsplatform/tablemetrics/internal/db"
)

// StoreAdapter adapts db.DB to the engine's Store interface. One adapter
// is built at startup and shared by every invocation; the identifier
// resolver and the size-capability probe are process-wide, read-mostly
// state.
type StoreAdapter struct {
	db       *db.DB
	resolver *db.Resolver
	sizes    bool
}

// NewStoreAdapter creates a store adapter, probing the size capability
// once.
func NewStoreAdapter(database *db.DB) *StoreAdapter {
	return &StoreAdapter{
		db:       database,
		resolver: db.NewResolver(),
		sizes:    database.SizesSupported(),
	}
}

// OpenRun creates a RUNNING run header in its own transaction.
func (a *StoreAdapter) OpenRun(snapshotDate string, skipSchemas, excludeTables []string) (int64, error) {
	return a.db.CreateRun(snapshotDate, db.RunStatusRunning, skipSchemas, excludeTables)
}

// FinalizeRun transitions a run to a terminal status in its own
// transaction. The coordinator uses this path only for failures; success
// is finalized inside the unit of work.
func (a *StoreAdapter) FinalizeRun(runID int64, status string, errorMessage *string) error {
	return a.db.FinalizeRun(runID, status, errorMessage)
}

// InUnit runs fn against a single transaction, committing on success and
// rolling back on error.
func (a *StoreAdapter) InUnit(fn func(Unit) error) error {
	return a.db.WithTransaction(func(tx *db.Tx) error {
		return fn(&unit{tx: tx, resolver: a.resolver, sizes: a.sizes})
	})
}

// unit is one transaction's view of the store.
type unit struct {
	tx       *db.Tx
	resolver *db.Resolver
	sizes    bool
}

func (u *unit) ListEnabledTargets() ([]db.TablePair, error) {
	return u.tx.ListEnabledTargets()
}

func (u *unit) ListBaseTables() ([]db.TablePair, error) {
	return u.tx.ListBaseTables()
}

func (u *unit) CountExact(schema, table string) (int64, error) {
	name, err := u.resolver.Resolve(u.tx, schema, table)
	if err != nil {
		return 0, err
	}
	return u.tx.CountRows(name)
}

func (u *unit) CountApprox(schema, table string) (int64, error) {
	return u.tx.CountApprox(schema, table)
}

func (u *unit) Sizes(schema, table string) (total, tableBytes, indexBytes int64, err error) {
	return u.tx.Sizes(schema, table)
}

func (u *unit) SizesSupported() bool {
	return u.sizes
}

func (u *unit) InsertMeasurements(rows []db.Measurement) error {
	return u.tx.InsertMeasurements(rows)
}

func (u *unit) UpsertRunSnapshot(runID int64, payload db.Payload) error {
	return u.tx.UpsertRunSnapshot(runID, payload)
}

func (u *unit) UpsertDailySnapshot(runID int64, snapshotDate string, payload db.Payload) (bool, error) {
	return u.tx.UpsertDailySnapshot(runID, snapshotDate, payload)
}

func (u *unit) FinalizeRun(runID int64, status string, errorMessage *string) error {
	return u.tx.FinalizeRun(runID, status, errorMessage)
}
