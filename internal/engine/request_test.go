package engine

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmsplatform/tablemetrics/internal/db"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newValidationCoordinator builds a coordinator with no backing store;
// validation never touches the database.
func newValidationCoordinator(t *testing.T) *Coordinator {
	t.Helper()

	c, err := NewCoordinator(nil, Config{Timezone: "UTC"}, discardLogger())
	require.NoError(t, err)
	c.now = func() time.Time {
		return time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	}
	return c
}

// =============================================================================
// Request validation tests
// =============================================================================

func TestValidate_DefaultsToCatalogMode(t *testing.T) {
	c := newValidationCoordinator(t)

	spec, err := c.validate(Request{})
	require.NoError(t, err)
	assert.Equal(t, ModeCatalog, spec.mode)
	assert.True(t, spec.exact)
	assert.Equal(t, "2026-08-26", spec.businessDate)
}

func TestValidate_UnknownMode(t *testing.T) {
	c := newValidationCoordinator(t)

	_, err := c.validate(Request{Mode: "everything"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "everything")
}

func TestValidate_ListModeRequiresTables(t *testing.T) {
	c := newValidationCoordinator(t)

	_, err := c.validate(Request{Mode: ModeList})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestValidate_MalformedTableNameIsNamed(t *testing.T) {
	c := newValidationCoordinator(t)

	_, err := c.validate(Request{Mode: ModeList, Tables: []string{"app.orders", "sales"}})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), `"sales"`)
}

func TestValidate_EmptySchemaOrTableRejected(t *testing.T) {
	c := newValidationCoordinator(t)

	for _, fq := range []string{".orders", "app.", "."} {
		_, err := c.validate(Request{Mode: ModeList, Tables: []string{fq}})
		assert.True(t, IsValidationError(err), "expected validation error for %q", fq)
	}
}

func TestValidate_ListTargetsPreserveCallerOrder(t *testing.T) {
	c := newValidationCoordinator(t)

	spec, err := c.validate(Request{Mode: ModeList, Tables: []string{"b.two", "a.one"}})
	require.NoError(t, err)
	assert.Equal(t, []db.TablePair{
		{SchemaName: "b", TableName: "two"},
		{SchemaName: "a", TableName: "one"},
	}, spec.listTargets)
}

func TestValidate_SchemaExclusionsUnion(t *testing.T) {
	c := newValidationCoordinator(t)

	spec, err := c.validate(Request{
		ExcludeSchemas: []string{"tmp", "staging"},
		SkipSchemas:    []string{"staging", "archive"},
	})
	require.NoError(t, err)

	assert.True(t, spec.skipSchemas["tmp"])
	assert.True(t, spec.skipSchemas["staging"])
	assert.True(t, spec.skipSchemas["archive"])
	// Audit copy is deduplicated
	assert.Equal(t, []string{"tmp", "staging", "archive"}, spec.auditSkipSchemas)
}

func TestValidate_EmptySchemaNameInExclusions(t *testing.T) {
	c := newValidationCoordinator(t)

	_, err := c.validate(Request{SkipSchemas: []string{""}})
	assert.True(t, IsValidationError(err))
}

func TestValidate_ExcludePairs(t *testing.T) {
	c := newValidationCoordinator(t)

	spec, err := c.validate(Request{Mode: ModeInverse, Exclude: []string{"app.scratch"}})
	require.NoError(t, err)
	assert.True(t, spec.excludePairs[db.TablePair{SchemaName: "app", TableName: "scratch"}])
	assert.Equal(t, []string{"app.scratch"}, spec.auditExcludeTables)
}

func TestValidate_ExactOverride(t *testing.T) {
	c := newValidationCoordinator(t)

	approx := false
	spec, err := c.validate(Request{Exact: &approx})
	require.NoError(t, err)
	assert.False(t, spec.exact)
}

// =============================================================================
// Business date tests
// =============================================================================

func TestBusinessDate_Override(t *testing.T) {
	c := newValidationCoordinator(t)

	spec, err := c.validate(Request{SnapshotDate: "2025-12-31"})
	require.NoError(t, err)
	assert.Equal(t, "2025-12-31", spec.businessDate)
}

func TestBusinessDate_MalformedOverride(t *testing.T) {
	c := newValidationCoordinator(t)

	for _, bad := range []string{"2025-13-01", "31-12-2025", "yesterday"} {
		_, err := c.validate(Request{SnapshotDate: bad})
		assert.True(t, IsValidationError(err), "expected validation error for %q", bad)
	}
}

func TestBusinessDate_UsesReferenceZone(t *testing.T) {
	c, err := NewCoordinator(nil, Config{Timezone: "America/New_York"}, discardLogger())
	require.NoError(t, err)

	// 03:00 UTC on the 26th is still the evening of the 25th in New York.
	c.now = func() time.Time {
		return time.Date(2026, 8, 26, 3, 0, 0, 0, time.UTC)
	}

	spec, err := c.validate(Request{})
	require.NoError(t, err)
	assert.Equal(t, "2026-08-25", spec.businessDate)
}

func TestNewCoordinator_InvalidTimezone(t *testing.T) {
	_, err := NewCoordinator(nil, Config{Timezone: "Mars/Olympus"}, discardLogger())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Mars/Olympus"))
}
