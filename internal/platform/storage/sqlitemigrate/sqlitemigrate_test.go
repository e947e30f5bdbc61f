package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func migration(up string, down string) *fstest.MapFile {
	body := "-- +migrate Up\n" + up
	if down != "" {
		body += "\n-- +migrate Down\n" + down
	}
	return &fstest.MapFile{Data: []byte(body)}
}

func hasTable(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var found string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		t.Fatalf("look up table %s: %v", name, err)
	}
	return true
}

func applied(t *testing.T, db *sql.DB) string {
	t.Helper()
	names, err := Applied(context.Background(), db)
	if err != nil {
		t.Fatalf("list applied: %v", err)
	}
	return strings.Join(names, ",")
}

func TestApplyMigrationsRunsFilesInNameOrder(t *testing.T) {
	db := openDB(t)
	schema := fstest.MapFS{
		"002_messages.sql": migration("CREATE INDEX messages_by_connection ON messages (connection_id);", "DROP INDEX messages_by_connection;"),
		"001_messages.sql": migration("CREATE TABLE messages (id TEXT PRIMARY KEY, connection_id TEXT NOT NULL);", "DROP TABLE messages;"),
		"003_typing.sql":   migration("CREATE TABLE typing (connection_id TEXT, user_id TEXT);", ""),
		"notes.md":         &fstest.MapFile{Data: []byte("ignored")},
		"archive/old.sql":  migration("CREATE TABLE never (id TEXT);", ""),
		"004_empty_up.sql": migration("", "DROP TABLE typing;"),
	}
	if err := ApplyMigrations(context.Background(), db, schema, ""); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if got := applied(t, db); got != "001_messages.sql,002_messages.sql,003_typing.sql" {
		t.Fatalf("applied = %q", got)
	}
	if !hasTable(t, db, "messages") || !hasTable(t, db, "typing") {
		t.Fatal("expected migrated tables")
	}
	if hasTable(t, db, "never") {
		t.Fatal("nested directories must not be applied")
	}
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	db := openDB(t)
	schema := fstest.MapFS{
		"001_blocks.sql": migration("CREATE TABLE blocks (blocker TEXT, blocked TEXT);", ""),
	}
	for range 3 {
		if err := ApplyMigrations(context.Background(), db, schema, ""); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	if got := applied(t, db); got != "001_blocks.sql" {
		t.Fatalf("applied = %q", got)
	}

	// A later release adds a file; only that file runs.
	schema["002_blocks_index.sql"] = migration("CREATE INDEX blocks_pair ON blocks (blocker, blocked);", "")
	if err := ApplyMigrations(context.Background(), db, schema, ""); err != nil {
		t.Fatalf("apply second release: %v", err)
	}
	if got := applied(t, db); got != "001_blocks.sql,002_blocks_index.sql" {
		t.Fatalf("applied = %q", got)
	}
}

func TestApplyMigrationsLeavesBrokenFileUnrecorded(t *testing.T) {
	db := openDB(t)
	schema := fstest.MapFS{
		"001_profiles.sql": migration("CREATE TABLE shadow_profiles (user_id TEXT PRIMARY KEY);", ""),
		"002_broken.sql":   migration("CREATE TABEL real_profiles (user_id TEXT);", ""),
	}
	if err := ApplyMigrations(context.Background(), db, schema, ""); err == nil {
		t.Fatal("expected the broken migration to fail")
	}
	if got := applied(t, db); got != "001_profiles.sql" {
		t.Fatalf("applied = %q, want only the good file", got)
	}

	schema["002_broken.sql"] = migration("CREATE TABLE real_profiles (user_id TEXT PRIMARY KEY);", "")
	if err := ApplyMigrations(context.Background(), db, schema, ""); err != nil {
		t.Fatalf("apply fixed file: %v", err)
	}
	if !hasTable(t, db, "real_profiles") {
		t.Fatal("expected the fixed migration to run")
	}
}

func TestApplyMigrationsKeysIncludeRoot(t *testing.T) {
	db := openDB(t)
	schema := fstest.MapFS{
		"inbox/001_inbox.sql": migration("CREATE TABLE inbox_items (id TEXT PRIMARY KEY);", ""),
	}
	if err := ApplyMigrations(context.Background(), db, schema, " inbox "); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := applied(t, db); got != "inbox/001_inbox.sql" {
		t.Fatalf("applied = %q", got)
	}
	if err := ApplyMigrations(context.Background(), db, schema, "missing"); err == nil {
		t.Fatal("expected an error for a missing root")
	}
	if err := ApplyMigrations(context.Background(), nil, schema, ""); err == nil {
		t.Fatal("expected an error for a nil db")
	}
}

func TestApplyMigrationsToleratesExistingObjects(t *testing.T) {
	db := openDB(t)
	if _, err := db.Exec(`CREATE TABLE connections (id TEXT PRIMARY KEY)`); err != nil {
		t.Fatalf("seed table: %v", err)
	}
	schema := fstest.MapFS{
		"001_connections.sql": migration("CREATE TABLE connections (id TEXT PRIMARY KEY);", ""),
	}
	if err := ApplyMigrations(context.Background(), db, schema, ""); err != nil {
		t.Fatalf("apply over existing table: %v", err)
	}
	if got := applied(t, db); got != "001_connections.sql" {
		t.Fatalf("applied = %q", got)
	}
}

func TestExtractUpMigration(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "up and down", content: "-- header\n-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;", want: "CREATE TABLE a (id INT);"},
		{name: "up only", content: "-- +migrate Up\nCREATE TABLE b (id INT);", want: "CREATE TABLE b (id INT);"},
		{name: "no markers", content: "CREATE TABLE c (id INT);", want: "CREATE TABLE c (id INT);"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := strings.TrimSpace(ExtractUpMigration(tt.content)); got != tt.want {
				t.Fatalf("up = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsAlreadyExistsError(t *testing.T) {
	for msg, want := range map[string]bool{
		"table connections already exists": true,
		"duplicate column name: stage":     true,
		"no such table: connections":       false,
	} {
		if got := IsAlreadyExistsError(errors.New(msg)); got != want {
			t.Errorf("IsAlreadyExistsError(%q) = %v, want %v", msg, got, want)
		}
	}
}
