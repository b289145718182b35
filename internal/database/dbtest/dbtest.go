// Package dbtest opens throwaway migrated local stores for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"pos-sync/internal/database"
)

func Open(t testing.TB) *database.LocalDB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "pos.db"))
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate local store: %v", err)
	}
	return db
}
