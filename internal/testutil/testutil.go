// Package testutil provides the shared in-memory database fixture
// used by the engine packages' tests, following the teacher's pattern
// of pointing tests at a real embedded database rather than mocking
// the facade layer.
package testutil

import (
	"testing"

	"github.com/NREL/torc/internal/store"
)

// OpenDB opens a fresh in-memory sqlite database with schema applied,
// closing it automatically at test cleanup.
func OpenDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:", 10000, 10000)
	if err != nil {
		t.Fatalf("testutil: failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("testutil: failed to close database: %v", err)
		}
	})
	return db
}
