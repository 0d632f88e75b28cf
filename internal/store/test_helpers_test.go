package store

import (
	"path/filepath"
	"testing"
	"time"
)

// createTestStore opens a fresh store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestCompilation returns a fully supported count record.
func createTestCompilation(id, layer string) Compilation {
	return Compilation{
		ID:             id,
		Layer:          layer,
		Operation:      "count",
		Fingerprint:    "fp-" + id,
		Query:          `{"match_all":{}}`,
		PostFilter:     `{"match_all":{}}`,
		FullySupported: true,
		Hits:           3,
		CreatedAt:      time.UnixMilli(1_700_000_000_000),
	}
}
