package table

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"
)

// NoExpiry is the stored ttl of a row that never expires.
const NoExpiry = -1

// maxTTL is the largest ttl, in seconds, whose duration fits a time.Duration.
const maxTTL = int64(math.MaxInt64 / int64(time.Second))

// Row is one record of the table.
type Row struct {
	Key       string
	Value     []byte // JSON text
	CreatedAt time.Time
	TTL       int64 // seconds; NoExpiry for none
}

// Expired reports whether the row is logically absent at now.
// A row expires once strictly more than TTL seconds have passed since creation.
// Only NoExpiry means forever; any other negative ttl has already elapsed.
func (r Row) Expired(now time.Time) bool {
	switch {
	case r.TTL == NoExpiry:
		return false
	case r.TTL > maxTTL:
		return false
	case r.TTL < -maxTTL:
		return true
	}
	return now.Sub(r.CreatedAt) > time.Duration(r.TTL)*time.Second
}

// Size is the storage footprint of the table.
type Size struct {
	// Used counts pages that hold data: page_count minus free pages.
	Used int64
	// File counts every page of the database, free ones included.
	File int64
}

// Get retrieves a single row by key.
// Returns ErrNotFound if the key is absent.
func (t *Table) Get(ctx context.Context, key string) (Row, error) {
	var (
		row       Row
		value     string
		createdAt int64
	)
	err := t.reader().QueryRowContext(ctx, `
		SELECT key, value, created_at, ttl
		FROM key_value_store
		WHERE key = ?
	`, key).Scan(&row.Key, &value, &createdAt, &row.TTL)
	if errors.Is(err, sql.ErrNoRows) {
		return Row{}, ErrNotFound
	}
	if err != nil {
		return Row{}, fmt.Errorf("get row: %w", err)
	}

	row.Value = []byte(value)
	row.CreatedAt = time.Unix(0, createdAt)
	return row, nil
}

// Exists reports whether a row exists for key, expired or not.
func (t *Table) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := t.reader().QueryRowContext(ctx, `
		SELECT 1 FROM key_value_store WHERE key = ?
	`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check row: %w", err)
	}
	return true, nil
}

// Insert adds a new row. Fails on a primary key conflict.
func (t *Table) Insert(ctx context.Context, row Row) error {
	w, err := t.writer(ctx)
	if err != nil {
		return fmt.Errorf("insert row: %w", err)
	}

	_, err = w.ExecContext(ctx, `
		INSERT INTO key_value_store (key, value, created_at, ttl)
		VALUES (?, ?, ?, ?)
	`,
		row.Key,
		string(row.Value),
		row.CreatedAt.UnixNano(),
		row.TTL,
	)
	if err != nil {
		return fmt.Errorf("insert row: %w", err)
	}
	return nil
}

// Delete removes the row for key. Reports whether a row was removed.
func (t *Table) Delete(ctx context.Context, key string) (bool, error) {
	w, err := t.writer(ctx)
	if err != nil {
		return false, fmt.Errorf("delete row: %w", err)
	}

	result, err := w.ExecContext(ctx, `
		DELETE FROM key_value_store WHERE key = ?
	`, key)
	if err != nil {
		return false, fmt.Errorf("delete row: %w", err)
	}
	return affected(result, "delete row")
}

// DeleteIfExpired removes the row for key only if its ttl has elapsed at now.
// Reports whether a row was removed.
func (t *Table) DeleteIfExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	// Avoid opening a write transaction when there is nothing to expire.
	row, err := t.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("expire row: %w", err)
	}
	if !row.Expired(now) {
		return false, nil
	}

	w, err := t.writer(ctx)
	if err != nil {
		return false, fmt.Errorf("expire row: %w", err)
	}
	result, err := w.ExecContext(ctx, `
		DELETE FROM key_value_store
		WHERE key = ?
		  AND ttl != -1
		  AND ? - created_at > ttl * 1000000000
	`, key, now.UnixNano())
	if err != nil {
		return false, fmt.Errorf("expire row: %w", err)
	}
	return affected(result, "expire row")
}

// DeleteExpired removes every row whose ttl has elapsed at now.
// Returns the number of rows removed.
func (t *Table) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	w, err := t.writer(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}

	result, err := w.ExecContext(ctx, `
		DELETE FROM key_value_store
		WHERE ttl != -1
		  AND ? - created_at > ttl * 1000000000
	`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired: rows affected: %w", err)
	}
	return n, nil
}

// Count returns the number of stored rows, expired ones included.
func (t *Table) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := t.reader().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM key_value_store
	`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// Keys returns the keys of rows not expired at now, in binary key order.
func (t *Table) Keys(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := t.reader().QueryContext(ctx, `
		SELECT key FROM key_value_store
		WHERE ttl = -1 OR ? - created_at <= ttl * 1000000000
		ORDER BY key COLLATE BINARY ASC
	`, now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("list keys: scan: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list keys: iterate: %w", err)
	}
	return keys, nil
}

// Size reports the database footprint in bytes.
func (t *Table) Size(ctx context.Context) (Size, error) {
	var pageCount, freeCount, pageSize int64
	err := t.reader().QueryRowContext(ctx, `
		SELECT p.page_count, f.freelist_count, s.page_size
		FROM pragma_page_count() AS p, pragma_freelist_count() AS f, pragma_page_size() AS s
	`).Scan(&pageCount, &freeCount, &pageSize)
	if err != nil {
		return Size{}, fmt.Errorf("size: %w", err)
	}
	return Size{
		Used: (pageCount - freeCount) * pageSize,
		File: pageCount * pageSize,
	}, nil
}

func affected(result sql.Result, op string) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	return n > 0, nil
}
