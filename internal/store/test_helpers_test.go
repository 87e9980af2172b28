package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/prontodb/internal/address"
	"github.com/roach88/prontodb/internal/testutil"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, _ := createTestStoreWithClock(t)
	return s
}

// createTestStoreWithClock creates a store driven by a manual clock.
func createTestStoreWithClock(t *testing.T) (*Store, *testutil.ManualClock) {
	t.Helper()
	clock := testutil.NewManualClock()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(clock))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}

// addr builds a context-less address.
func addr(project, namespace, key string) address.Address3 {
	return address.New3(project, namespace, key)
}
