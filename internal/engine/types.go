package engine

import (
	"github.com/nmsplatform/tablemetrics/internal/db"
)

// Mode selects the target resolution strategy for a run.
type Mode string

const (
	// ModeCatalog reads the enabled entries of the rowcount_targets registry
	ModeCatalog Mode = "catalog"
	// ModeAll discovers every base table visible in the relational catalog
	ModeAll Mode = "all"
	// ModeList measures exactly the caller-supplied schema.table names
	ModeList Mode = "list"
	// ModeInverse discovers everything, then removes the caller's exclude pairs
	ModeInverse Mode = "inverse"
)

// Request is one invocation of the measurement workflow, transport
// agnostic: the HTTP surface and the in-process scheduler both submit it.
type Request struct {
	Mode           Mode     `json:"mode"`
	Tables         []string `json:"tables,omitempty"`
	Exclude        []string `json:"exclude,omitempty"`
	ExcludeSchemas []string `json:"excludeSchemas,omitempty"`
	SkipSchemas    []string `json:"skipSchemas,omitempty"`
	Exact          *bool    `json:"exact,omitempty"`
	SnapshotDate   string   `json:"snapshotDate,omitempty"`
}

// Result is the synchronous outcome of a successful run. On failure the
// coordinator still reports the run id when a header was created before
// the failure.
type Result struct {
	RunID           int64
	BusinessDate    string
	TablesProcessed int
}

// Ledger owns the run record's lifecycle. Open and Finalize each commit
// in their own transaction so the audit trail survives a rolled-back
// unit of work (header-durable policy).
type Ledger interface {
	OpenRun(snapshotDate string, skipSchemas, excludeTables []string) (int64, error)
	FinalizeRun(runID int64, status string, errorMessage *string) error
}

// Store is the durable state behind the coordinator: the ledger plus the
// ability to run one unit of work against a single transaction.
type Store interface {
	Ledger
	InUnit(fn func(Unit) error) error
}

// Unit is one transaction's coherent view of the catalog and the metric
// tables. Everything a run measures and writes goes through one Unit, so
// the whole run is backed by one snapshot-in-time.
type Unit interface {
	Catalog
	Collector

	InsertMeasurements(rows []db.Measurement) error
	UpsertRunSnapshot(runID int64, payload db.Payload) error
	UpsertDailySnapshot(runID int64, snapshotDate string, payload db.Payload) (bool, error)
	FinalizeRun(runID int64, status string, errorMessage *string) error
}

// Catalog answers which tables exist and which are registered.
type Catalog interface {
	ListEnabledTargets() ([]db.TablePair, error)
	ListBaseTables() ([]db.TablePair, error)
}

// Collector measures one table. Sizes is an optional capability; callers
// consult SizesSupported before asking.
type Collector interface {
	CountExact(schema, table string) (int64, error)
	CountApprox(schema, table string) (int64, error)
	Sizes(schema, table string) (total, tableBytes, indexBytes int64, err error)
	SizesSupported() bool
}
