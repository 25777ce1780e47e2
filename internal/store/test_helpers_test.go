package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedActive writes ids as the Active ranking of (entityType, typology).
func seedActive(t *testing.T, s *Store, entityType, typology string, ids ...int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.InsertStaging(ctx, entityType, typology, 1, ids))
	_, err := s.Promote(ctx, entityType, typology)
	require.NoError(t, err)
}

func slotIDs(slots []Slot) []int64 {
	ids := make([]int64, len(slots))
	for i, sl := range slots {
		ids[i] = sl.EntityID
	}
	return ids
}
