package table

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema
// 1 - Added partial expiry index for sweeps
const currentSchemaVersion = 2

// ErrNotFound is returned by Get when no row exists for the key.
var ErrNotFound = errors.New("row not found")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Table is a durable key/value record table stored in one SQLite file.
//
// Table is not safe for concurrent mutation. Callers serialize writers and
// must not run a read concurrently with a write or a flush; concurrent reads
// are fine.
type Table struct {
	db   *sql.DB
	path string

	// tx is the open write transaction, nil right after a flush.
	tx *sql.Tx
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
func Open(path string) (*Table, error) {
	// Open database (creates file if doesn't exist)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// The write transaction lives on this one connection; a second
	// connection would deadlock waiting for it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Table{db: db, path: path}, nil
}

// Path returns the database file path.
func (t *Table) Path() string {
	return t.path
}

// Close commits pending writes and closes the database connection.
func (t *Table) Close() error {
	if t.db == nil {
		return nil
	}
	flushErr := t.Flush(context.Background())
	closeErr := t.db.Close()
	t.db = nil
	return errors.Join(flushErr, closeErr)
}

// Pending reports whether there are mutations waiting for a flush.
func (t *Table) Pending() bool {
	return t.tx != nil
}

// Flush commits the open write transaction, if any.
func (t *Table) Flush(ctx context.Context) error {
	if t.tx == nil {
		return nil
	}
	tx := t.tx
	t.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("flush: commit: %w", err)
	}
	return nil
}

// Vacuum commits pending writes, rebuilds the database file to reclaim the
// space of deleted rows, then truncates the WAL so the reclaimed space shows
// up on disk.
func (t *Table) Vacuum(ctx context.Context) error {
	if err := t.Flush(ctx); err != nil {
		return err
	}
	if _, err := t.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	if _, err := t.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("vacuum: checkpoint: %w", err)
	}
	return nil
}

// reader returns the handle reads must go through: the open transaction
// when there is one, so unflushed writes are visible.
func (t *Table) reader() querier {
	if t.tx != nil {
		return t.tx
	}
	return t.db
}

// writer returns the open write transaction, beginning one if needed.
func (t *Table) writer(ctx context.Context) (querier, error) {
	if t.tx != nil {
		return t.tx, nil
	}
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin write transaction: %w", err)
	}
	t.tx = tx
	return tx, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}
	if version < 2 {
		if err := migrateToV2(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the partial index used by the expiry sweep. Rows that
// never expire are left out of it.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_key_value_store_expiry
		ON key_value_store(ttl, created_at)
		WHERE ttl >= 0
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// migrateToV2 widens the expiry index to every ttl except -1, matching the
// expiry queries now that other negative ttls count as elapsed.
func migrateToV2(db *sql.DB) error {
	stmts := []string{
		`DROP INDEX IF EXISTS idx_key_value_store_expiry`,
		`CREATE INDEX idx_key_value_store_expiry
		ON key_value_store(ttl, created_at)
		WHERE ttl != -1`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate to v2: %w", err)
		}
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (t *Table) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := t.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
