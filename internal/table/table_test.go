package table

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	tbl, err := Open(path)
	require.NoError(t, err)
	defer tbl.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
	assert.Equal(t, path, tbl.Path())
}

func TestOpen_ReopenKeepsCommittedRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	tbl, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, tbl.Insert(ctx, createTestRow("k", `"v"`, NoExpiry)))
	require.NoError(t, tbl.Close(), "close must flush pending writes")

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	row, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `"v"`, string(row.Value))
	assert.True(t, testEpoch.Equal(row.CreatedAt))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		tbl, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		require.NoError(t, tbl.Close())
	}

	tbl, err := Open(path)
	require.NoError(t, err)
	defer tbl.Close()

	var name string
	err = tbl.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name=?",
		"idx_key_value_store_expiry",
	).Scan(&name)
	assert.NoError(t, err, "expiry index missing after idempotent opens")

	require.NoError(t, tbl.verifyPragma("user_version", "2"))
}

func TestOpen_MigratesV1ExpiryIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	tbl, err := Open(path)
	require.NoError(t, err)
	_, err = tbl.db.Exec(`DROP INDEX idx_key_value_store_expiry`)
	require.NoError(t, err)
	_, err = tbl.db.Exec(`CREATE INDEX idx_key_value_store_expiry
		ON key_value_store(ttl, created_at) WHERE ttl >= 0`)
	require.NoError(t, err)
	_, err = tbl.db.Exec(`PRAGMA user_version = 1`)
	require.NoError(t, err)
	require.NoError(t, tbl.Close())

	tbl, err = Open(path)
	require.NoError(t, err)
	defer tbl.Close()

	var sqlText string
	require.NoError(t, tbl.db.QueryRow(
		"SELECT sql FROM sqlite_master WHERE type='index' AND name=?",
		"idx_key_value_store_expiry",
	).Scan(&sqlText))
	assert.Contains(t, sqlText, "ttl != -1")
	require.NoError(t, tbl.verifyPragma("user_version", "2"))
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	assert.Error(t, err)
}

func TestClose_NilDB(t *testing.T) {
	tbl := &Table{db: nil}
	assert.NoError(t, tbl.Close())
}

func TestClose_MultipleCalls(t *testing.T) {
	tbl, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	require.NoError(t, tbl.Close())
	assert.NoError(t, tbl.Close())
}

func TestPragmas(t *testing.T) {
	tbl := createTestTable(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, tbl.verifyPragma(tt.name, tt.expected))
		})
	}
}

func TestFlush_NoPendingIsNoop(t *testing.T) {
	tbl := createTestTable(t)
	assert.False(t, tbl.Pending())
	assert.NoError(t, tbl.Flush(context.Background()))
}

func TestFlush_CommitsPendingWrites(t *testing.T) {
	ctx := context.Background()
	tbl := createTestTable(t)

	require.NoError(t, tbl.Insert(ctx, createTestRow("a", `1`, NoExpiry)))
	assert.True(t, tbl.Pending())

	require.NoError(t, tbl.Flush(ctx))
	assert.False(t, tbl.Pending())

	// Committed rows are visible without an open transaction.
	var n int
	require.NoError(t, tbl.db.QueryRow("SELECT COUNT(*) FROM key_value_store").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestFlush_FailedCommitRollsBack(t *testing.T) {
	ctx := context.Background()
	tbl := createTestTable(t)

	// A deferred foreign key violation is only reported at COMMIT.
	for _, stmt := range []string{
		`PRAGMA foreign_keys = ON`,
		`CREATE TABLE parent (id INTEGER PRIMARY KEY)`,
		`CREATE TABLE child (parent_id INTEGER REFERENCES parent(id) DEFERRABLE INITIALLY DEFERRED)`,
	} {
		_, err := tbl.db.Exec(stmt)
		require.NoError(t, err)
	}

	require.NoError(t, tbl.Insert(ctx, createTestRow("a", `1`, NoExpiry)))
	w, err := tbl.writer(ctx)
	require.NoError(t, err)
	_, err = w.ExecContext(ctx, `INSERT INTO child (parent_id) VALUES (1)`)
	require.NoError(t, err)

	assert.Error(t, tbl.Flush(ctx))
	assert.False(t, tbl.Pending())

	_, err = tbl.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound, "the batch was rolled back")

	require.NoError(t, tbl.Insert(ctx, createTestRow("b", `1`, NoExpiry)))
	require.NoError(t, tbl.Flush(ctx))
}

func TestVacuum_ShrinksAfterDeletes(t *testing.T) {
	ctx := context.Background()
	tbl := createTestTable(t)

	for i := 0; i < 500; i++ {
		value := []byte(`"` + filler(1000) + `"`)
		require.NoError(t, tbl.Insert(ctx, Row{Key: keyN(i), Value: value, CreatedAt: testEpoch, TTL: NoExpiry}))
	}
	require.NoError(t, tbl.Flush(ctx))
	before, err := tbl.Size(ctx)
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		_, err := tbl.Delete(ctx, keyN(i))
		require.NoError(t, err)
	}
	require.NoError(t, tbl.Insert(ctx, createTestRow("keep", `1`, NoExpiry)))

	require.NoError(t, tbl.Vacuum(ctx))
	assert.False(t, tbl.Pending())

	after, err := tbl.Size(ctx)
	require.NoError(t, err)
	assert.Less(t, after.File, before.File)

	_, err = tbl.Get(ctx, "keep")
	assert.NoError(t, err)
}
