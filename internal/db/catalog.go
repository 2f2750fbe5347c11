package db

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// TablePair is one (schema, table) catalog entry.
type TablePair struct {
	SchemaName string
	TableName  string
}

// Resolver caches identifier-to-catalog-object resolution. A resolved
// name has been confirmed to exist in sqlite_master once; after that the
// quoted qualified name is served from cache for the resolver's
// lifetime. The cache is process-wide, read-mostly state and is never
// invalidated: tables are assumed not to be dropped or recreated during
// a run.
type Resolver struct {
	mu    sync.RWMutex
	names map[TablePair]string
}

// NewResolver creates an empty resolver cache.
func NewResolver() *Resolver {
	return &Resolver{names: make(map[TablePair]string)}
}

// Resolve returns the quoted qualified name for a (schema, table) pair,
// probing the catalog on first use.
func (r *Resolver) Resolve(tx *Tx, schema, table string) (string, error) {
	key := TablePair{SchemaName: schema, TableName: table}

	r.mu.RLock()
	name, ok := r.names[key]
	r.mu.RUnlock()
	if ok {
		return name, nil
	}

	probe := fmt.Sprintf(
		"SELECT 1 FROM %s.sqlite_master WHERE type = 'table' AND name = ?",
		quoteIdent(schema),
	)
	var one int
	if err := tx.QueryRow(probe, table).Scan(&one); err != nil {
		return "", fmt.Errorf("resolve %s.%s: %w", schema, table, err)
	}

	name = QualifiedName(schema, table)
	r.mu.Lock()
	r.names[key] = name
	r.mu.Unlock()

	return name, nil
}

// ListSchemas enumerates the schemas visible on this connection: main
// plus any attached databases. The temp schema is internal and never
// reported.
func (tx *Tx) ListSchemas() ([]string, error) {
	rows, err := tx.Query("PRAGMA database_list")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var seq int
		var name, file any
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return nil, err
		}
		s, ok := name.(string)
		if !ok || s == "temp" {
			continue
		}
		schemas = append(schemas, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Strings(schemas)
	return schemas, nil
}

// ListBaseTables enumerates all base tables across visible schemas,
// ordered by schema then table. SQLite's own sqlite_% bookkeeping tables
// are never reported.
func (tx *Tx) ListBaseTables() ([]TablePair, error) {
	schemas, err := tx.ListSchemas()
	if err != nil {
		return nil, err
	}

	var tables []TablePair
	for _, schema := range schemas {
		query := fmt.Sprintf(
			`SELECT name FROM %s.sqlite_master
			 WHERE type = 'table' AND name NOT LIKE 'sqlite_%%'
			 ORDER BY name`,
			quoteIdent(schema),
		)

		rows, err := tx.Query(query)
		if err != nil {
			return nil, err
		}

		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return nil, err
			}
			tables = append(tables, TablePair{SchemaName: schema, TableName: name})
		}

		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return tables, nil
}

// CountRows runs a full COUNT(*) against a resolved qualified name.
// Authoritative, but cost is proportional to table size.
func (tx *Tx) CountRows(qualifiedName string) (int64, error) {
	var count int64
	if err := tx.QueryRow("SELECT COUNT(*) FROM " + qualifiedName).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CountApprox reads the row estimate maintained by ANALYZE in
// sqlite_stat1. O(1), but stale relative to the last statistics refresh;
// a table with no statistics reports 0.
func (tx *Tx) CountApprox(schema, table string) (int64, error) {
	query := fmt.Sprintf(
		"SELECT stat FROM %s.sqlite_stat1 WHERE tbl = ?",
		quoteIdent(schema),
	)

	rows, err := tx.Query(query, table)
	if err != nil {
		// No ANALYZE has ever run in this schema
		if strings.Contains(err.Error(), "no such table") {
			return 0, nil
		}
		return 0, err
	}
	defer rows.Close()

	// sqlite_stat1 carries one row per index plus one for the table
	// itself; the first number of each stat is the row estimate.
	var est int64
	for rows.Next() {
		var stat string
		if err := rows.Scan(&stat); err != nil {
			return 0, err
		}
		fields := strings.Fields(stat)
		if len(fields) == 0 {
			continue
		}
		n, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		if n > est {
			est = n
		}
	}

	return est, rows.Err()
}

// SizesSupported reports whether the dbstat virtual table is available
// in this build of SQLite. Probed once at startup; size collection is an
// optional capability, not a hard requirement.
func (db *DB) SizesSupported() bool {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM dbstat WHERE 0").Scan(&n)
	return err == nil
}

// Sizes reports (total, table, index) bytes for a table from the dbstat
// virtual table. Callers must have confirmed SizesSupported.
func (tx *Tx) Sizes(schema, table string) (total, tableBytes, indexBytes int64, err error) {
	query := "SELECT COALESCE(SUM(pgsize), 0) FROM dbstat(?) WHERE name = ?"
	if err = tx.QueryRow(query, schema, table).Scan(&tableBytes); err != nil {
		return 0, 0, 0, err
	}

	// Index pages are accounted under each index's own name.
	idxQuery := fmt.Sprintf(
		"SELECT name FROM %s.sqlite_master WHERE type = 'index' AND tbl_name = ?",
		quoteIdent(schema),
	)
	rows, err := tx.Query(idxQuery, table)
	if err != nil {
		return 0, 0, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var idx string
		if err = rows.Scan(&idx); err != nil {
			return 0, 0, 0, err
		}
		var b int64
		if err = tx.QueryRow(query, schema, idx).Scan(&b); err != nil {
			return 0, 0, 0, err
		}
		indexBytes += b
	}
	if err = rows.Err(); err != nil {
		return 0, 0, 0, err
	}

	return tableBytes + indexBytes, tableBytes, indexBytes, nil
}
