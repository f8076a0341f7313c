package table

import (
	"path/filepath"
	"testing"
	"time"
)

var testEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// createTestTable creates a new table in a temp directory for testing.
func createTestTable(t *testing.T) *Table {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	tbl, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { tbl.Close() })
	return tbl
}

// createTestRow creates a row created at testEpoch with the given ttl.
func createTestRow(key, value string, ttl int64) Row {
	return Row{
		Key:       key,
		Value:     []byte(value),
		CreatedAt: testEpoch,
		TTL:       ttl,
	}
}
