package kvs

import (
	"log/slog"
	"time"
)

// Defaults applied to zero Config fields.
const (
	DefaultSizeLimit                  int64 = 1024 * 1024 * 1024 // 1 GiB
	DefaultMaxKeyLength                     = 32                 // characters
	DefaultMaxValueSize                     = 16 * 1024          // bytes, exclusive
	DefaultMaxUncommittedTransactions       = 10000
	DefaultMaxUncommittedSize         int64 = 15 * 1024 * 1000 // 15.36 MB
	DefaultCommitInterval                   = 120 * time.Second
	DefaultSweepInterval                    = 10 * time.Minute
	DefaultLockTimeout                      = time.Second
)

// NoExpiry is the ttl of a row that never expires. Any other negative ttl
// has already elapsed.
const NoExpiry = -1

// Clock supplies the current time for TTL decisions.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config controls every Handle opened through a Registry.
// Zero fields take the Default* values.
type Config struct {
	// Directory is used when Open is called without a directory.
	Directory string

	// SizeLimit rejects new rows once the store's used bytes reach it.
	SizeLimit int64

	// MaxKeyLength is the longest accepted key, in Unicode code points.
	MaxKeyLength int

	// MaxValueSize is the exclusive upper bound on a value's encoded size.
	MaxValueSize int

	// MaxUncommittedTransactions and MaxUncommittedSize force a flush when
	// either is reached by unflushed mutations.
	MaxUncommittedTransactions int
	MaxUncommittedSize         int64

	// CommitInterval and SweepInterval are the mean periods of the
	// background flush and expiry sweep. Each wait is drawn uniformly from
	// [interval/2, interval]. A negative interval disables the loop.
	CommitInterval time.Duration
	SweepInterval  time.Duration

	// LockTimeout bounds how long Open waits for the exclusivity lock.
	LockTimeout time.Duration

	// Clock defaults to the system clock.
	Clock Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.SizeLimit <= 0 {
		c.SizeLimit = DefaultSizeLimit
	}
	if c.MaxKeyLength <= 0 {
		c.MaxKeyLength = DefaultMaxKeyLength
	}
	if c.MaxValueSize <= 0 {
		c.MaxValueSize = DefaultMaxValueSize
	}
	if c.MaxUncommittedTransactions <= 0 {
		c.MaxUncommittedTransactions = DefaultMaxUncommittedTransactions
	}
	if c.MaxUncommittedSize <= 0 {
		c.MaxUncommittedSize = DefaultMaxUncommittedSize
	}
	if c.CommitInterval == 0 {
		c.CommitInterval = DefaultCommitInterval
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = DefaultLockTimeout
	}
	if c.Clock == nil {
		c.Clock = systemClock{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
