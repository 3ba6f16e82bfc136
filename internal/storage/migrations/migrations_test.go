package migrations

import (
	"io/fs"
	"reflect"
	"testing"
	"testing/fstest"
)

func TestSplitStatements(t *testing.T) {
	input := `-- comment
CREATE TABLE a (x UInt8) ENGINE = Memory;

CREATE TABLE b (y UInt8) ENGINE = Memory;
`
	stmts := splitStatements(input)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %v", len(stmts), stmts)
	}
	if stmts[0] != "CREATE TABLE a (x UInt8) ENGINE = Memory" {
		t.Errorf("unexpected first statement: %q", stmts[0])
	}
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	if err := validateNoSemicolonInStrings(`SELECT 'a''b'; SELECT 1;`); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validateNoSemicolonInStrings(`SELECT 'a;b'`); err == nil {
		t.Error("expected error for semicolon in string literal")
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://localhost:9000/holders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db != "holders" {
		t.Errorf("expected holders, got %s", db)
	}
	if _, err := databaseFromDSN("clickhouse://localhost:9000"); err == nil {
		t.Error("expected error for dsn without database")
	}
}

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE t (x);\n-- +migrate Down\nDROP TABLE t;\n"
	if got := extractUpMigration(content); got != "\nCREATE TABLE t (x);\n" {
		t.Errorf("unexpected up section: %q", got)
	}
	if got := extractUpMigration("CREATE TABLE t (x);"); got != "CREATE TABLE t (x);" {
		t.Errorf("content without markers should be returned whole: %q", got)
	}
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	for name, fsys := range map[string]fs.FS{"postgres": PostgresFS, "clickhouse": ClickhouseFS, "sqlite": SQLiteFS} {
		entries, err := fs.ReadDir(fsys, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if len(entries) == 0 {
			t.Errorf("no %s migrations embedded", name)
		}
	}
}

func TestMigrationFiles_SortedSQLOnly(t *testing.T) {
	fsys := fstest.MapFS{
		"pg/002_b.sql":   {Data: []byte("SELECT 2;")},
		"pg/001_a.sql":   {Data: []byte("SELECT 1;")},
		"pg/README.md":   {Data: []byte("notes")},
		"pg/sub/003.sql": {Data: []byte("SELECT 3;")},
	}

	got, err := migrationFiles(fsys, "pg")
	if err != nil {
		t.Fatalf("migrationFiles: %v", err)
	}
	want := []string{"pg/001_a.sql", "pg/002_b.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := migrationFiles(fsys, "missing"); err == nil {
		t.Error("expected error for missing directory")
	}
}
