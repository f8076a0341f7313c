package kvs

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ttlkv/internal/table"
	"github.com/roach88/ttlkv/internal/testutil"
)

// testValue mirrors the three-field record used throughout the store's tests.
var testValue = map[string]any{
	"first_field":  "first_value_first_value_first_value_first_value_first_value_",
	"second_field": "second_value_second_value_second_value_second_value_second_value_",
	"third_field":  "third_value_third_value_third_value_third_value_third_value_",
}

// newTestRegistry creates a registry rooted in a temp dir with a manual clock
// and both background loops disabled. mutate may adjust the config.
func newTestRegistry(t *testing.T, mutate func(*Config)) (*Registry, *testutil.ManualClock) {
	t.Helper()
	clock := testutil.NewManualClock()
	cfg := Config{
		Directory:      t.TempDir(),
		CommitInterval: -1,
		SweepInterval:  -1,
		Clock:          clock,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	reg := NewRegistry(cfg)
	t.Cleanup(func() { reg.Close() })
	return reg, clock
}

// openTestHandle opens "test.db" in a fresh registry.
func openTestHandle(t *testing.T, mutate func(*Config)) (*Handle, *testutil.ManualClock) {
	t.Helper()
	reg, clock := newTestRegistry(t, mutate)
	h, err := reg.Open("test.db", "")
	require.NoError(t, err)
	return h, clock
}

// failCommitsWith reopens h's table so that any commit containing a row for
// key fails. The trigger leaves a deferred foreign key violation that SQLite
// only reports at COMMIT.
func failCommitsWith(t *testing.T, h *Handle, key string) {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()

	require.NoError(t, h.table.Close())

	db, err := sql.Open("sqlite3", h.path)
	require.NoError(t, err)
	_, err = db.Exec(fmt.Sprintf(`
		CREATE TABLE parent (id INTEGER PRIMARY KEY);
		CREATE TABLE child (
			parent_id INTEGER REFERENCES parent(id) DEFERRABLE INITIALLY DEFERRED
		);
		CREATE TRIGGER fail_commit AFTER INSERT ON key_value_store
		WHEN NEW.key = '%s'
		BEGIN
			INSERT INTO child (parent_id) VALUES (1);
		END;
	`, strings.ReplaceAll(key, "'", "''")))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	h.table, err = table.Open("file:" + h.path + "?_foreign_keys=1")
	require.NoError(t, err)
}
