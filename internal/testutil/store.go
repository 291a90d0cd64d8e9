package testutil

import (
	"testing"

	"github.com/HerbHall/hwmeter/internal/store"
)

// NewStore returns an in-memory latest-sample store closed at test cleanup.
func NewStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("testutil.NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
