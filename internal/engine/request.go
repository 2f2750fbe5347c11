package engine

import (
	"strings"
	"time"

	"github.com/nmsplatform/tablemetrics/internal/db"
)

// runSpec is a validated request: everything below has been checked
// before any database interaction, so a bad request never creates a run
// header.
type runSpec struct {
	mode         Mode
	listTargets  []db.TablePair       // mode list: the literal targets, in caller order
	excludePairs map[db.TablePair]bool // mode inverse: pairs removed after discovery
	skipSchemas  map[string]bool      // caller-supplied schema exclusions
	exact        bool
	businessDate string

	// Audit copies of the raw exclusion parameters, stored on the run header
	auditSkipSchemas   []string
	auditExcludeTables []string
}

// validate turns a Request into a runSpec or a ValidationError.
func (c *Coordinator) validate(req Request) (*runSpec, error) {
	spec := &runSpec{
		mode:         req.Mode,
		excludePairs: make(map[db.TablePair]bool),
		skipSchemas:  make(map[string]bool),
		exact:        true,
	}

	if spec.mode == "" {
		spec.mode = ModeCatalog
	}

	switch spec.mode {
	case ModeCatalog, ModeAll, ModeList, ModeInverse:
	default:
		return nil, validationErrorf("unknown mode: %s", spec.mode)
	}

	if req.Exact != nil {
		spec.exact = *req.Exact
	}

	// Schema skip set: excludeSchemas and skipSchemas are aliases and
	// union together.
	for _, s := range append(append([]string{}, req.ExcludeSchemas...), req.SkipSchemas...) {
		if s == "" {
			return nil, validationErrorf("empty schema name in schema exclusions")
		}
		if !spec.skipSchemas[s] {
			spec.skipSchemas[s] = true
			spec.auditSkipSchemas = append(spec.auditSkipSchemas, s)
		}
	}

	if spec.mode == ModeList {
		if len(req.Tables) == 0 {
			return nil, validationErrorf("tables is required for mode %q", ModeList)
		}
		for _, fq := range req.Tables {
			pair, err := splitQualified(fq)
			if err != nil {
				return nil, err
			}
			spec.listTargets = append(spec.listTargets, pair)
		}
	}

	for _, fq := range req.Exclude {
		pair, err := splitQualified(fq)
		if err != nil {
			return nil, err
		}
		spec.excludePairs[pair] = true
		spec.auditExcludeTables = append(spec.auditExcludeTables, fq)
	}

	date, err := c.businessDate(req.SnapshotDate)
	if err != nil {
		return nil, err
	}
	spec.businessDate = date

	return spec, nil
}

// businessDate resolves the calendar day a run's results are attributed
// to: the explicit override when given, otherwise today in the
// configured reference zone.
func (c *Coordinator) businessDate(override string) (string, error) {
	if override == "" {
		return c.now().In(c.tz).Format(time.DateOnly), nil
	}

	d, err := time.Parse(time.DateOnly, override)
	if err != nil {
		return "", validationErrorf("invalid snapshotDate %q: expected YYYY-MM-DD", override)
	}
	return d.Format(time.DateOnly), nil
}

// splitQualified parses a "schema.table" name, failing with a
// ValidationError naming the offending entry.
func splitQualified(fq string) (db.TablePair, error) {
	schema, table, ok := strings.Cut(fq, ".")
	if !ok || schema == "" || table == "" {
		return db.TablePair{}, validationErrorf("table names must be 'schema.table': %q", fq)
	}
	return db.TablePair{SchemaName: schema, TableName: table}, nil
}
