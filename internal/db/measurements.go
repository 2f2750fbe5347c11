package db

// InsertMeasurements bulk-writes the measurement rows of one run. Rows
// are append-only audit facts; (run_id, schema, table) is unique so a
// replayed run id fails with a duplicate-key error rather than doubling
// the audit trail.
func (tx *Tx) InsertMeasurements(rows []Measurement) error {
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO table_metrics_measurements
			(run_id, schema_name, table_name, row_count, bytes_total, bytes_table, bytes_index)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range rows {
		_, err := stmt.Exec(
			m.RunID,
			m.SchemaName,
			m.TableName,
			m.RowCount,
			m.BytesTotal,
			m.BytesTable,
			m.BytesIndex,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetMeasurements retrieves all measurement rows for a run, ordered by
// schema then table name.
func (db *DB) GetMeasurements(runID int64) ([]Measurement, error) {
	query := `
		SELECT run_id, schema_name, table_name, row_count, bytes_total, bytes_table, bytes_index
		FROM table_metrics_measurements
		WHERE run_id = ?
		ORDER BY schema_name, table_name
	`

	rows, err := db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var measurements []Measurement
	for rows.Next() {
		var m Measurement
		err := rows.Scan(
			&m.RunID,
			&m.SchemaName,
			&m.TableName,
			&m.RowCount,
			&m.BytesTotal,
			&m.BytesTable,
			&m.BytesIndex,
		)
		if err != nil {
			return nil, err
		}
		measurements = append(measurements, m)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if measurements == nil {
		measurements = []Measurement{}
	}

	return measurements, nil
}
