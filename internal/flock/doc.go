// Package flock implements the cross-process exclusivity lock that guards a
// data file.
//
// The lock is an OS advisory lock (flock(2) on Unix, LockFileEx on Windows)
// taken on a sidecar file next to the data file, conventionally
// "<data-file>.lock". Only the lock state of the sidecar matters; its
// content is never read or written and the file is never removed, since
// removing it would let two processes lock two different inodes.
//
// A Lock moves through Unlocked → Acquiring → Held → Released. Acquisition
// polls a non-blocking lock attempt until it succeeds or the context ends,
// in which case the Lock returns to Unlocked. A Lock is not re-entrant and
// cannot be reacquired after release; use a new Lock.
//
// flock locks belong to the open file description, so two Locks on the same
// path conflict even inside one process.
package flock
