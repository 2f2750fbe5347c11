package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmsplatform/tablemetrics/internal/db"
)

// fakeUnit is an in-memory Unit for exercising the coordinator without a
// database.
type fakeUnit struct {
	enabledTargets []db.TablePair
	baseTables     []db.TablePair
	counts         map[db.TablePair]int64
	failOn         map[db.TablePair]error
	sizesSupported bool

	inserted     []db.Measurement
	runSnapshots map[int64]db.Payload
	dailyRuns    map[string]int64
	finalized    []string
}

func newFakeUnit() *fakeUnit {
	return &fakeUnit{
		counts:       make(map[db.TablePair]int64),
		failOn:       make(map[db.TablePair]error),
		runSnapshots: make(map[int64]db.Payload),
		dailyRuns:    make(map[string]int64),
	}
}

func (u *fakeUnit) ListEnabledTargets() ([]db.TablePair, error) { return u.enabledTargets, nil }
func (u *fakeUnit) ListBaseTables() ([]db.TablePair, error)     { return u.baseTables, nil }

func (u *fakeUnit) CountExact(schema, table string) (int64, error) {
	pair := db.TablePair{SchemaName: schema, TableName: table}
	if err := u.failOn[pair]; err != nil {
		return 0, err
	}
	return u.counts[pair], nil
}

func (u *fakeUnit) CountApprox(schema, table string) (int64, error) {
	return u.CountExact(schema, table)
}

func (u *fakeUnit) Sizes(schema, table string) (int64, int64, int64, error) {
	return 4096, 3072, 1024, nil
}

func (u *fakeUnit) SizesSupported() bool { return u.sizesSupported }

func (u *fakeUnit) InsertMeasurements(rows []db.Measurement) error {
	u.inserted = append(u.inserted, rows...)
	return nil
}

func (u *fakeUnit) UpsertRunSnapshot(runID int64, payload db.Payload) error {
	u.runSnapshots[runID] = payload
	return nil
}

func (u *fakeUnit) UpsertDailySnapshot(runID int64, snapshotDate string, payload db.Payload) (bool, error) {
	if prev, ok := u.dailyRuns[snapshotDate]; ok && prev >= runID {
		return false, nil
	}
	u.dailyRuns[snapshotDate] = runID
	return true, nil
}

func (u *fakeUnit) FinalizeRun(runID int64, status string, errorMessage *string) error {
	u.finalized = append(u.finalized, status)
	return nil
}

// =============================================================================
// Target resolution tests
// =============================================================================

func resolveWith(t *testing.T, u Unit, req Request) ([]db.TablePair, error) {
	t.Helper()

	c := newValidationCoordinator(t)
	spec, err := c.validate(req)
	require.NoError(t, err)
	return c.resolveTargets(u, spec)
}

func TestResolveTargets_CatalogMode(t *testing.T) {
	u := newFakeUnit()
	u.enabledTargets = []db.TablePair{
		{SchemaName: "app", TableName: "orders"},
		{SchemaName: "sales", TableName: "invoices"},
	}

	targets, err := resolveWith(t, u, Request{Mode: ModeCatalog})
	require.NoError(t, err)
	assert.Equal(t, u.enabledTargets, targets)
}

func TestResolveTargets_AllModeSkipsSystemSchemas(t *testing.T) {
	u := newFakeUnit()
	u.baseTables = []db.TablePair{
		{SchemaName: "app", TableName: "orders"},
		{SchemaName: "temp", TableName: "ephemeral"},
	}

	targets, err := resolveWith(t, u, Request{Mode: ModeAll})
	require.NoError(t, err)
	assert.Equal(t, []db.TablePair{{SchemaName: "app", TableName: "orders"}}, targets)
}

func TestResolveTargets_AllModeAppliesCallerSkips(t *testing.T) {
	u := newFakeUnit()
	u.baseTables = []db.TablePair{
		{SchemaName: "app", TableName: "orders"},
		{SchemaName: "tmp", TableName: "scratch"},
	}

	targets, err := resolveWith(t, u, Request{Mode: ModeAll, SkipSchemas: []string{"tmp"}})
	require.NoError(t, err)
	assert.Equal(t, []db.TablePair{{SchemaName: "app", TableName: "orders"}}, targets)
}

func TestResolveTargets_ListModeIgnoresDiscovery(t *testing.T) {
	u := newFakeUnit()
	u.baseTables = []db.TablePair{{SchemaName: "other", TableName: "x"}}

	targets, err := resolveWith(t, u, Request{Mode: ModeList, Tables: []string{"app.orders"}})
	require.NoError(t, err)
	assert.Equal(t, []db.TablePair{{SchemaName: "app", TableName: "orders"}}, targets)
}

func TestResolveTargets_InverseModeRemovesPairs(t *testing.T) {
	u := newFakeUnit()
	u.baseTables = []db.TablePair{
		{SchemaName: "app", TableName: "orders"},
		{SchemaName: "app", TableName: "scratch"},
	}

	targets, err := resolveWith(t, u, Request{Mode: ModeInverse, Exclude: []string{"app.scratch"}})
	require.NoError(t, err)
	assert.Equal(t, []db.TablePair{{SchemaName: "app", TableName: "orders"}}, targets)
}

func TestResolveTargets_EmptyResultAborts(t *testing.T) {
	u := newFakeUnit()
	u.baseTables = []db.TablePair{{SchemaName: "tmp", TableName: "scratch"}}

	_, err := resolveWith(t, u, Request{Mode: ModeAll, SkipSchemas: []string{"tmp"}})
	assert.True(t, errors.Is(err, ErrNoTargets))
}

func TestResolveTargets_EmptyRegistryAborts(t *testing.T) {
	u := newFakeUnit()

	_, err := resolveWith(t, u, Request{Mode: ModeCatalog})
	assert.True(t, errors.Is(err, ErrNoTargets))
}
