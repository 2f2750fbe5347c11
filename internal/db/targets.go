package db

// The rowcount_targets registry backs catalog-driven resolution: an
// explicit list of enabled (schema, table) pairs maintained by operators
// rather than discovered from the catalog.

// ListEnabledTargets retrieves the enabled registry entries, ordered by
// schema then table. Runs inside the unit of work so catalog mode sees
// the registry at the same snapshot as the measurements.
func (tx *Tx) ListEnabledTargets() ([]TablePair, error) {
	query := `
		SELECT schema_name, table_name
		FROM rowcount_targets
		WHERE enabled = 1
		ORDER BY schema_name, table_name
	`

	rows, err := tx.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []TablePair
	for rows.Next() {
		var t TablePair
		if err := rows.Scan(&t.SchemaName, &t.TableName); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}

	return targets, rows.Err()
}

// ListTargets retrieves all registry entries, enabled or not
func (db *DB) ListTargets() ([]Target, error) {
	query := `
		SELECT schema_name, table_name, enabled, created_at
		FROM rowcount_targets
		ORDER BY schema_name, table_name
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []Target
	for rows.Next() {
		var t Target
		if err := rows.Scan(&t.SchemaName, &t.TableName, &t.Enabled, &t.CreatedAt); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if targets == nil {
		targets = []Target{}
	}

	return targets, nil
}

// UpsertTarget registers a (schema, table) pair, replacing the enabled
// flag if the pair already exists.
func (db *DB) UpsertTarget(schema, table string, enabled bool) error {
	query := `
		INSERT INTO rowcount_targets (schema_name, table_name, enabled)
		VALUES (?, ?, ?)
		ON CONFLICT (schema_name, table_name) DO UPDATE
			SET enabled = excluded.enabled
	`

	_, err := db.Exec(query, schema, table, enabled)
	return err
}

// DeleteTarget removes a registry entry
func (db *DB) DeleteTarget(schema, table string) error {
	res, err := db.Exec(
		`DELETE FROM rowcount_targets WHERE schema_name = ? AND table_name = ?`,
		schema, table,
	)
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
