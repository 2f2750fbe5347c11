package db

import (
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nmsplatform/tablemetrics/tools/migrator"
)

// Test Fixtures and Helpers

// NewTestDB creates an in-memory SQLite database with the full schema
// applied.
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// A pooled :memory: DSN gives every connection its own database;
	// pin the pool so migrations and queries share one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := migrator.RunMigrations(db.DB, "../../migrations"); err != nil {
		db.Close()
		t.Fatalf("failed to apply migrations: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// AttachTestSchema attaches a fresh in-memory database under the given
// schema name and creates the named tables in it, seeding each with
// rowCounts[table] rows.
func AttachTestSchema(t *testing.T, db *DB, schema string, rowCounts map[string]int) {
	t.Helper()

	if err := db.AttachSchema(schema, ":memory:"); err != nil {
		t.Fatalf("failed to attach schema %s: %v", schema, err)
	}

	for table, count := range rowCounts {
		fq := QualifiedName(schema, table)
		if _, err := db.Exec("CREATE TABLE " + fq + " (id INTEGER PRIMARY KEY, val TEXT)"); err != nil {
			t.Fatalf("failed to create %s: %v", fq, err)
		}
		for i := 0; i < count; i++ {
			if _, err := db.Exec("INSERT INTO "+fq+" (val) VALUES (?)", "row"); err != nil {
				t.Fatalf("failed to seed %s: %v", fq, err)
			}
		}
	}
}

// =============================================================================
// Connection / transaction tests
// =============================================================================

func TestOpen_InvalidDSN(t *testing.T) {
	_, err := Open("sqlite3", "/nonexistent-dir/never/metrics.db")
	if err == nil {
		t.Fatal("expected error for unreachable DSN")
	}
}

func TestWithTransaction_CommitsOnSuccess(t *testing.T) {
	db := NewTestDB(t)

	err := db.WithTransaction(func(tx *Tx) error {
		_, err := tx.Exec("INSERT INTO rowcount_targets (schema_name, table_name) VALUES ('app', 'orders')")
		return err
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	targets, err := db.ListTargets()
	if err != nil {
		t.Fatalf("list targets failed: %v", err)
	}
	if len(targets) != 1 {
		t.Fatalf("expected 1 target after commit, got %d", len(targets))
	}
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := NewTestDB(t)

	wantErr := ErrDuplicate
	err := db.WithTransaction(func(tx *Tx) error {
		if _, err := tx.Exec("INSERT INTO rowcount_targets (schema_name, table_name) VALUES ('app', 'orders')"); err != nil {
			return err
		}
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("expected the inner error, got %v", err)
	}

	targets, err := db.ListTargets()
	if err != nil {
		t.Fatalf("list targets failed: %v", err)
	}
	if len(targets) != 0 {
		t.Fatalf("expected rollback to discard the insert, got %d targets", len(targets))
	}
}

func TestIsDuplicate(t *testing.T) {
	db := NewTestDB(t)

	if err := db.UpsertTarget("app", "orders", true); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	// Raw insert bypassing the upsert triggers the unique constraint
	_, err := db.Exec("INSERT INTO rowcount_targets (schema_name, table_name) VALUES ('app', 'orders')")
	if err == nil {
		t.Fatal("expected duplicate key error")
	}
	if !IsDuplicate(err) {
		t.Errorf("expected IsDuplicate to classify %v", err)
	}
}

func TestQualifiedName_QuotesEmbeddedQuotes(t *testing.T) {
	got := QualifiedName(`we"ird`, "orders")
	want := `"we""ird"."orders"`
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
