package kvs

import (
	"context"
	"errors"

	"github.com/roach88/ttlkv/internal/table"
)

// expireKey is the lazy expiry path: it removes key's row if the row has a
// finite ttl that has elapsed. Runs before every Create, Read and Delete.
func (h *Handle) expireKey(key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}

	removed, err := h.table.DeleteIfExpired(context.Background(), key, h.now())
	if err != nil {
		return storageError("expire", key, err)
	}
	if !removed {
		return nil
	}
	h.metrics.expired.Inc()
	return h.recordLocked(len(key))
}

// liveRowLocked reports whether key has a row that has not expired. A row
// that expired after expireKey ran is removed here. Caller holds h.mu
// exclusively.
func (h *Handle) liveRowLocked(ctx context.Context, key string) (bool, error) {
	row, err := h.table.Get(ctx, key)
	if errors.Is(err, table.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storageError("lookup", key, err)
	}
	if !row.Expired(h.now()) {
		return true, nil
	}

	if _, err := h.table.Delete(ctx, key); err != nil {
		return false, storageError("expire", key, err)
	}
	h.metrics.expired.Inc()
	if err := h.recordLocked(len(key)); err != nil {
		return false, err
	}
	return false, nil
}

// Sweep removes every expired row and flushes. This is the periodic expiry
// pass, exposed so callers can run it on demand. Returns the number of rows
// removed.
func (h *Handle) Sweep() (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, ErrClosed
	}

	n, err := h.table.DeleteExpired(context.Background(), h.now())
	if err != nil {
		return 0, storageError("sweep", "", err)
	}
	h.metrics.sweeps.Inc()
	h.metrics.expired.Add(int(n))

	if err := h.flushLocked("sweep"); err != nil {
		return n, err
	}
	h.logger.Debug("swept expired rows", "rows", n)
	return n, nil
}
