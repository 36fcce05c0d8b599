package scan

import (
	"database/sql"
	"path/filepath"
	"testing"

	internaldb "github.com/mkessler/evfind/internal/db"
	"github.com/mkessler/evfind/internal/rules"
)

// mustOpenDB opens a temp file SQLite database with the full schema applied.
func mustOpenDB(tb testing.TB) *sql.DB {
	tb.Helper()
	dbPath := filepath.Join(tb.TempDir(), "test.db")
	db, err := internaldb.Open(dbPath)
	if err != nil {
		tb.Fatalf("open test DB: %v", err)
	}
	if err := internaldb.RunMigrations(db); err != nil {
		db.Close()
		tb.Fatalf("run migrations: %v", err)
	}
	tb.Cleanup(func() { db.Close() })
	return db
}

// mustParseRules compiles a rules document or fails the test.
func mustParseRules(tb testing.TB, doc string) *rules.Config {
	tb.Helper()
	cfg, err := rules.Parse([]byte(doc))
	if err != nil {
		tb.Fatalf("compile rules: %v", err)
	}
	return cfg
}
