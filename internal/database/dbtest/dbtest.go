// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/01moynul/marzetti-backend/internal/database"
)

// New returns a fresh in-memory SQLite database with the schema applied.
// It is closed when the test finishes.
func New(t testing.TB) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, dialect, err := database.OpenDB(ctx, "sqlite::memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(ctx, db, dialect); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}
