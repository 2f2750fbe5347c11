package migrator

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func writeMigration(t *testing.T, dir, filename, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write migration: %v", err)
	}
}

const migration1 = `-- +migrate Up
CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT);
`

const migration2 = `-- +migrate Up
CREATE TABLE gadgets (id INTEGER PRIMARY KEY);
`

// =============================================================================
// Parser tests
// =============================================================================

func TestParseMigrationFile(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001_create_widgets.sql", migration1)

	m, err := ParseMigrationFile(filepath.Join(dir, "001_create_widgets.sql"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if m.Version != 1 {
		t.Errorf("expected version 1, got %d", m.Version)
	}
	if m.Name != "create_widgets" {
		t.Errorf("expected name create_widgets, got %s", m.Name)
	}
	if !strings.Contains(m.UpSQL, "CREATE TABLE widgets") {
		t.Errorf("unexpected SQL: %s", m.UpSQL)
	}
}

func TestParseMigrationFile_BadFilename(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "1_bad.sql", migration1)

	if _, err := ParseMigrationFile(filepath.Join(dir, "1_bad.sql")); err == nil {
		t.Fatal("expected error for non NNN_name.sql filename")
	}
}

func TestParseMigrationFile_MissingUpMarker(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001_no_marker.sql", "CREATE TABLE widgets (id INTEGER);\n")

	if _, err := ParseMigrationFile(filepath.Join(dir, "001_no_marker.sql")); err == nil {
		t.Fatal("expected error for missing Up marker")
	}
}

func TestParseMigrationFile_EmptySQL(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001_empty.sql", "-- +migrate Up\n\n")

	if _, err := ParseMigrationFile(filepath.Join(dir, "001_empty.sql")); err == nil {
		t.Fatal("expected error for empty migration body")
	}
}

func TestLoadMigrations_SortedByVersion(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "002_gadgets.sql", migration2)
	writeMigration(t, dir, "001_widgets.sql", migration1)
	writeMigration(t, dir, "README.md", "not a migration")

	migrations, err := LoadMigrations(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("migrations not sorted: %d, %d", migrations[0].Version, migrations[1].Version)
	}
}

func TestLoadMigrations_GapInVersions(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001_widgets.sql", migration1)
	writeMigration(t, dir, "003_gadgets.sql", migration2)

	if _, err := LoadMigrations(dir); err == nil {
		t.Fatal("expected error for version gap")
	}
}

// =============================================================================
// Runner tests
// =============================================================================

func TestRunMigrations_AppliesPending(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001_widgets.sql", migration1)
	writeMigration(t, dir, "002_gadgets.sql", migration2)

	db := newTestDB(t)
	if err := RunMigrations(db, dir); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	version, err := GetCurrentVersion(db)
	if err != nil {
		t.Fatalf("get version failed: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}

	if _, err := db.Exec("INSERT INTO widgets (name) VALUES ('w')"); err != nil {
		t.Errorf("migrated table unusable: %v", err)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001_widgets.sql", migration1)

	db := newTestDB(t)
	if err := RunMigrations(db, dir); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if err := RunMigrations(db, dir); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	applied, err := GetAppliedMigrations(db)
	if err != nil {
		t.Fatalf("get applied failed: %v", err)
	}
	if len(applied) != 1 {
		t.Errorf("expected 1 applied migration, got %d", len(applied))
	}
}

func TestRunMigrations_FailedSQLRollsBack(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001_broken.sql", "-- +migrate Up\nCREATE TABLE (syntax error;\n")

	db := newTestDB(t)
	if err := RunMigrations(db, dir); err == nil {
		t.Fatal("expected error for broken SQL")
	}

	version, err := GetCurrentVersion(db)
	if err != nil {
		t.Fatalf("get version failed: %v", err)
	}
	if version != 0 {
		t.Errorf("expected no recorded version after rollback, got %d", version)
	}
}

func TestRunMigrations_RefusesBackfill(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001_widgets.sql", migration1)
	writeMigration(t, dir, "002_gadgets.sql", migration2)

	db := newTestDB(t)

	// Simulate a database already at version 2 with version 1 missing
	// from its history.
	if err := createSchemaTable(db); err != nil {
		t.Fatalf("create schema table failed: %v", err)
	}
	if _, err := db.Exec("INSERT INTO schema_migrations (version) VALUES (2)"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if err := RunMigrations(db, dir); err == nil {
		t.Fatal("expected error applying a version below the high water mark")
	}
}

func TestGetCurrentVersion_NoTable(t *testing.T) {
	db := newTestDB(t)

	version, err := GetCurrentVersion(db)
	if err != nil {
		t.Fatalf("get version failed: %v", err)
	}
	if version != 0 {
		t.Errorf("expected 0 on a fresh database, got %d", version)
	}
}
