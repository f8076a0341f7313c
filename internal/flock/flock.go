package flock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// State is the lifecycle state of a Lock.
type State int

const (
	Unlocked State = iota
	Acquiring
	Held
	Released
)

func (s State) String() string {
	switch s {
	case Unlocked:
		return "unlocked"
	case Acquiring:
		return "acquiring"
	case Held:
		return "held"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DefaultPollInterval is how often a contended lock is retried.
const DefaultPollInterval = 50 * time.Millisecond

var (
	// ErrTimeout is returned when another holder keeps the lock until the
	// acquisition context ends.
	ErrTimeout = errors.New("lock held by another process")

	// ErrInvalidState is returned by Acquire on a Lock that is not Unlocked.
	ErrInvalidState = errors.New("lock is not in the unlocked state")
)

// Lock is an exclusive advisory lock on one sidecar file.
type Lock struct {
	path         string
	pollInterval time.Duration

	mu    sync.Mutex
	state State
	file  *os.File
}

// New returns an Unlocked lock for the sidecar file at path.
func New(path string) *Lock {
	return &Lock{path: path, pollInterval: DefaultPollInterval}
}

// Path returns the sidecar file path.
func (l *Lock) Path() string {
	return l.path
}

// State returns the current lifecycle state.
func (l *Lock) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// TryAcquireFor is Acquire bounded by a timeout instead of a context.
func (l *Lock) TryAcquireFor(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return l.Acquire(ctx)
}

// Acquire takes the lock, retrying while another holder has it until ctx is
// done. On ErrTimeout the Lock is Unlocked again and the sidecar is closed.
func (l *Lock) Acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.state != Unlocked {
		state := l.state
		l.mu.Unlock()
		return fmt.Errorf("acquire %s: %w (state=%s)", l.path, ErrInvalidState, state)
	}
	l.state = Acquiring
	l.mu.Unlock()

	file, err := l.acquire(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.state = Unlocked
		return err
	}
	l.file = file
	l.state = Held
	return nil
}

func (l *Lock) acquire(ctx context.Context) (*os.File, error) {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: open lock file: %w", l.path, err)
	}

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		locked, err := tryLock(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("acquire %s: %w", l.path, err)
		}
		if locked {
			return file, nil
		}

		select {
		case <-ctx.Done():
			file.Close()
			return nil, fmt.Errorf("acquire %s: %w: %w", l.path, ErrTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Release unlocks and closes the sidecar. Releasing a Lock that is not Held
// is a no-op.
func (l *Lock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Held {
		return nil
	}
	l.state = Released

	unlockErr := unlock(l.file)
	closeErr := l.file.Close()
	l.file = nil
	if err := errors.Join(unlockErr, closeErr); err != nil {
		return fmt.Errorf("release %s: %w", l.path, err)
	}
	return nil
}
