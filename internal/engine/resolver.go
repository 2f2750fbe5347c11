package engine

import (
	"github.com/nmsplatform/tablemetrics/internal/db"
)

// resolveTargets computes the final ordered set of (schema, table) pairs
// to measure. Pure with respect to the unit's catalog state: no side
// effects, same inputs give the same targets.
func (c *Coordinator) resolveTargets(u Unit, spec *runSpec) ([]db.TablePair, error) {
	var (
		candidates []db.TablePair
		err        error
	)

	switch spec.mode {
	case ModeCatalog:
		candidates, err = u.ListEnabledTargets()
	case ModeAll, ModeInverse:
		candidates, err = u.ListBaseTables()
	case ModeList:
		candidates = spec.listTargets
	}
	if err != nil {
		return nil, &PersistenceError{Op: "target discovery", Err: err}
	}

	targets := make([]db.TablePair, 0, len(candidates))
	for _, t := range candidates {
		if c.schemaExcluded(t.SchemaName, spec) {
			continue
		}
		if spec.mode == ModeInverse && spec.excludePairs[t] {
			continue
		}
		targets = append(targets, t)
	}

	// An empty result is an abort, never an empty success
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	return targets, nil
}

// schemaExcluded applies the system skip set (unconditional) and the
// caller's skip set.
func (c *Coordinator) schemaExcluded(schema string, spec *runSpec) bool {
	return c.systemSchemas[schema] || spec.skipSchemas[schema]
}
