package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestStores opens an in-memory database for a test.
func newTestStores(t *testing.T) *Stores {
	t.Helper()
	db, err := NewMemPebbleDB()
	require.NoError(t, err)
	s := NewStores(db)
	t.Cleanup(func() { s.Close() })
	return s
}
