package kvs

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/VictoriaMetrics/metrics"

	"github.com/roach88/ttlkv/internal/flock"
	"github.com/roach88/ttlkv/internal/table"
)

// LockSuffix is appended to a data file's path to name its sidecar lock file.
const LockSuffix = ".lock"

// Registry hands out one Handle per resolved data-file path.
//
// Thread-safety: all methods are safe for concurrent use. The map is
// guarded by a single mutex held for the whole lookup-or-create, so two
// goroutines opening the same new file never both try to take its lock.
type Registry struct {
	cfg     Config
	metrics *metrics.Set

	mu      sync.Mutex
	handles map[string]*Handle
	closed  bool
}

// NewRegistry creates an empty registry. Handles opened through it use cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:     cfg.withDefaults(),
		metrics: metrics.NewSet(),
		handles: make(map[string]*Handle),
	}
}

// Open returns the Handle for the data file name inside dir, creating the
// file if needed. An empty dir means Config.Directory.
//
// The first Open of a path takes the file's exclusivity lock, opens the
// record table and starts the handle's background loops. Later Opens of the
// same path return that Handle untouched.
//
// Errors: ErrConcurrentAccess if another process holds the file past
// Config.LockTimeout; ErrStorageOpen if the lock file or table cannot be
// opened; ErrClosed after Close.
func (r *Registry) Open(name, dir string) (*Handle, error) {
	if dir == "" {
		dir = r.cfg.Directory
	}
	path, err := filepath.Abs(filepath.Join(dir, name))
	if err != nil {
		return nil, newError(CodeStorageOpen, "cannot resolve path", "", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, newError(CodeClosed, "registry is closed", "", nil)
	}
	if h, ok := r.handles[path]; ok {
		return h, nil
	}

	h, err := r.openHandle(path)
	if err != nil {
		return nil, err
	}
	r.handles[path] = h
	return h, nil
}

// openHandle takes the lock, opens the table and starts the loops.
// Caller holds r.mu.
func (r *Registry) openHandle(path string) (*Handle, error) {
	logger := r.cfg.Logger.With("path", path)

	lock := flock.New(path + LockSuffix)
	if err := lock.TryAcquireFor(r.cfg.LockTimeout); err != nil {
		if errors.Is(err, flock.ErrTimeout) {
			logger.Debug("exclusivity lock busy", "timeout", r.cfg.LockTimeout)
			return nil, newError(CodeConcurrentAccess,
				fmt.Sprintf("another process is accessing %s", path), "", err)
		}
		return nil, newError(CodeStorageOpen, "cannot open lock file", "", err)
	}

	tbl, err := table.Open(path)
	if err != nil {
		if releaseErr := lock.Release(); releaseErr != nil {
			logger.Error("release lock after failed open", "error", releaseErr)
		}
		return nil, newError(CodeStorageOpen, fmt.Sprintf("cannot open %s", path), "", err)
	}

	h := newHandle(r, path, tbl, lock, logger)
	h.start()
	logger.Debug("handle opened")
	return h, nil
}

// forget drops h from the map if it is still the registered handle.
func (r *Registry) forget(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handles[h.path] == h {
		delete(r.handles, h.path)
	}
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Close closes every handle, committing pending writes and releasing each
// file lock. Open fails with ErrClosed afterwards. Close is idempotent.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteMetrics writes the registry's counters in Prometheus text format.
func (r *Registry) WriteMetrics(w io.Writer) {
	r.metrics.WritePrometheus(w)
}
