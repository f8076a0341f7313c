package kvs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/roach88/ttlkv/internal/flock"
	"github.com/roach88/ttlkv/internal/jsonval"
	"github.com/roach88/ttlkv/internal/table"
)

// Handle is the live connection to one data file.
//
// Thread-safety: all methods are safe for concurrent use. Mutations are
// serialized by an internal mutex; lookups share it with each other.
type Handle struct {
	path     string
	cfg      Config
	registry *Registry
	logger   *slog.Logger
	metrics  *handleMetrics

	// mu guards everything below. Writers (mutations, flushes, sweeps,
	// lazy expiry) take it exclusively; lookups take it shared.
	mu     sync.RWMutex
	table  *table.Table
	lock   *flock.Lock
	batch  batcher
	closed bool

	cancel    context.CancelFunc
	loops     sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// Stats is a point-in-time view of a handle.
type Stats struct {
	Path             string `json:"path"`
	Rows             int64  `json:"rows"`
	UsedBytes        int64  `json:"used_bytes"`
	FileBytes        int64  `json:"file_bytes"`
	SizeLimit        int64  `json:"size_limit"`
	UncommittedCount int    `json:"uncommitted_count"`
	UncommittedBytes int64  `json:"uncommitted_bytes"`
}

func newHandle(r *Registry, path string, tbl *table.Table, lock *flock.Lock, logger *slog.Logger) *Handle {
	return &Handle{
		path:     path,
		cfg:      r.cfg,
		registry: r,
		logger:   logger,
		metrics:  newHandleMetrics(r.metrics, path),
		table:    tbl,
		lock:     lock,
		batch:    newBatcher(r.cfg.MaxUncommittedTransactions, r.cfg.MaxUncommittedSize),
	}
}

// Path returns the resolved data-file path.
func (h *Handle) Path() string {
	return h.path
}

// Create stores value under key. A ttl in seconds makes the row expire;
// NoExpiry keeps it forever. Any other negative ttl has already elapsed, so
// the row is never visible.
//
// Errors: ErrKeyTooLarge, ErrValueTooLarge, ErrInvalidValue,
// ErrDuplicateKey, ErrCapacityExceeded, ErrClosed, ErrStorage.
//
// ErrStorage after the insert means a threshold flush failed. The failed
// commit rolls back the whole unflushed batch, this row included.
func (h *Handle) Create(key string, value any, ttl int) (err error) {
	defer func() { h.metrics.failed("create", err) }()

	key, err = h.checkKey(key)
	if err != nil {
		return err
	}
	data, err := h.encodeValue(key, value)
	if err != nil {
		return err
	}

	if err := h.expireKey(key); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}

	ctx := context.Background()
	exists, err := h.liveRowLocked(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return newError(CodeDuplicateKey, "key already exists", key, nil)
	}

	size, err := h.table.Size(ctx)
	if err != nil {
		return storageError("size check", key, err)
	}
	if size.Used >= h.cfg.SizeLimit {
		return newError(CodeCapacityExceeded,
			fmt.Sprintf("store size %d bytes has reached the limit of %d bytes", size.Used, h.cfg.SizeLimit), key, nil)
	}

	row := table.Row{
		Key:       key,
		Value:     data,
		CreatedAt: h.now(),
		TTL:       int64(ttl),
	}
	if err := h.table.Insert(ctx, row); err != nil {
		return storageError("insert", key, err)
	}
	h.metrics.creates.Inc()

	return h.recordLocked(len(key) + len(data))
}

// Read returns the value stored under key, decoded from JSON: objects as
// map[string]any, arrays as []any and numbers as json.Number.
//
// Errors: ErrKeyNotFound (including for expired rows), ErrClosed, ErrStorage.
func (h *Handle) Read(key string) (value any, err error) {
	data, err := h.readRaw(key)
	if err != nil {
		return nil, err
	}
	value, err = jsonval.Decode(data)
	if err != nil {
		return nil, storageError("decode", key, err)
	}
	return value, nil
}

// ReadInto decodes the value stored under key into dst with encoding/json
// rules. Errors as for Read.
func (h *Handle) ReadInto(key string, dst any) error {
	data, err := h.readRaw(key)
	if err != nil {
		return err
	}
	if err := jsonval.DecodeInto(data, dst); err != nil {
		return newError(CodeInvalidValue, "stored value does not fit destination", key, err)
	}
	return nil
}

func (h *Handle) readRaw(key string) (data []byte, err error) {
	defer func() { h.metrics.failed("read", err) }()

	if err := h.expireKey(key); err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, ErrClosed
	}

	row, err := h.table.Get(context.Background(), key)
	if errors.Is(err, table.ErrNotFound) {
		return nil, newError(CodeKeyNotFound, "key does not exist", key, nil)
	}
	if err != nil {
		return nil, storageError("read", key, err)
	}
	// The row may have expired since expireKey ran; it is absent either way.
	if row.Expired(h.now()) {
		return nil, newError(CodeKeyNotFound, "key does not exist", key, nil)
	}

	h.metrics.reads.Inc()
	return row.Value, nil
}

// Delete removes key.
//
// Errors: ErrKeyNotFound (including for expired rows), ErrClosed, ErrStorage.
// As with Create, ErrStorage from a threshold flush means the unflushed
// batch was rolled back.
func (h *Handle) Delete(key string) (err error) {
	defer func() { h.metrics.failed("delete", err) }()

	if err := h.expireKey(key); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}

	ctx := context.Background()
	exists, err := h.liveRowLocked(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return newError(CodeKeyNotFound, "key does not exist", key, nil)
	}

	if _, err := h.table.Delete(ctx, key); err != nil {
		return storageError("delete", key, err)
	}
	h.metrics.deletes.Inc()

	return h.recordLocked(len(key))
}

// Keys returns the keys of all rows that have not expired, in byte order.
func (h *Handle) Keys() ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, ErrClosed
	}

	keys, err := h.table.Keys(context.Background(), h.now())
	if err != nil {
		return nil, storageError("list keys", "", err)
	}
	return keys, nil
}

// Stats reports row count, storage size and the unflushed batch.
func (h *Handle) Stats() (Stats, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return Stats{}, ErrClosed
	}

	ctx := context.Background()
	rows, err := h.table.Count(ctx)
	if err != nil {
		return Stats{}, storageError("stats", "", err)
	}
	size, err := h.table.Size(ctx)
	if err != nil {
		return Stats{}, storageError("stats", "", err)
	}

	return Stats{
		Path:             h.path,
		Rows:             rows,
		UsedBytes:        size.Used,
		FileBytes:        size.File,
		SizeLimit:        h.cfg.SizeLimit,
		UncommittedCount: h.batch.count,
		UncommittedBytes: h.batch.bytes,
	}, nil
}

// Flush makes every mutation so far durable.
func (h *Handle) Flush() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	return h.flushLocked("explicit")
}

// Optimize compacts the data file, reclaiming the space of deleted and
// swept rows. It holds the handle exclusively for its whole run and is never
// called automatically.
func (h *Handle) Optimize() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}

	start := time.Now()
	if err := h.table.Vacuum(context.Background()); err != nil {
		return storageError("optimize", "", err)
	}
	h.batch.reset()
	h.metrics.flushes.Inc()
	h.logger.Debug("optimized", "duration", time.Since(start))
	return nil
}

// Close stops the background loops, commits pending writes, releases the
// exclusivity lock and removes the handle from its Registry. Every other
// method returns ErrClosed afterwards. Close is idempotent.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		// Unregister first so a concurrent Open never returns this handle
		// once it starts shutting down. A reopen waits on the file lock.
		h.registry.forget(h)
		if h.cancel != nil {
			h.cancel()
		}
		h.loops.Wait()

		h.mu.Lock()
		h.closed = true
		var errs []error
		if err := h.table.Close(); err != nil {
			errs = append(errs, storageError("close", "", err))
		}
		if err := h.lock.Release(); err != nil {
			errs = append(errs, storageError("release lock", "", err))
		}
		h.mu.Unlock()

		h.closeErr = errors.Join(errs...)
		h.logger.Debug("handle closed", "error", h.closeErr)
	})
	return h.closeErr
}

// checkKey enforces the length limit. Keys are stored byte for byte.
func (h *Handle) checkKey(key string) (string, error) {
	if n := utf8.RuneCountInString(key); n > h.cfg.MaxKeyLength {
		return "", newError(CodeKeyTooLarge,
			fmt.Sprintf("key is %d characters, limit is %d", n, h.cfg.MaxKeyLength), key, nil)
	}
	return key, nil
}

// encodeValue produces the stored bytes and enforces the size limit.
func (h *Handle) encodeValue(key string, value any) ([]byte, error) {
	data, err := jsonval.Marshal(value)
	if err != nil {
		return nil, newError(CodeInvalidValue, "value cannot be encoded as JSON", key, err)
	}
	if len(data) >= h.cfg.MaxValueSize {
		return nil, newError(CodeValueTooLarge,
			fmt.Sprintf("value is %d bytes, limit is under %d", len(data), h.cfg.MaxValueSize), key, nil)
	}
	return data, nil
}

// recordLocked hands a mutation of n bytes to the batcher and flushes when a
// threshold is crossed. Caller holds h.mu exclusively.
func (h *Handle) recordLocked(n int) error {
	if h.batch.add(n) {
		return h.flushLocked("threshold")
	}
	return nil
}

// flushLocked commits the table and resets the batch counters once the
// commit has finished. A failed commit rolls the transaction back, so the
// batch is gone either way. Caller holds h.mu exclusively.
func (h *Handle) flushLocked(reason string) error {
	count, bytes := h.batch.count, h.batch.bytes
	err := h.table.Flush(context.Background())
	h.batch.reset()
	if err != nil {
		h.logger.Error("flush failed, unflushed mutations rolled back",
			"reason", reason, "mutations", count, "bytes", bytes, "error", err)
		return storageError("flush", "", err)
	}
	h.metrics.flushes.Inc()
	h.logger.Debug("flushed", "reason", reason, "mutations", count, "bytes", bytes)
	return nil
}

func (h *Handle) now() time.Time {
	return h.cfg.Clock.Now()
}
