// Package table provides the SQLite-backed record table underneath a store
// handle.
//
// One row per key: (key, value, created_at, ttl). Values are JSON text,
// created_at is unix nanoseconds and ttl is whole seconds with -1 meaning
// the row never expires. Any other negative ttl is already elapsed.
//
// # Batched Writes
//
// Mutations are not committed one by one. The first mutation after a flush
// opens a write transaction and every following mutation and read runs
// inside it, so a handle always sees its own unflushed writes. Flush commits
// the transaction. Whatever was not flushed is lost if the process dies.
//
// # Database Configuration
//
//   - WAL mode: readers of a committed snapshot never block the writer
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One connection: SQLite allows a single writer, and the open write
//     transaction is bound to that connection
//
// All statements take their inputs as bound parameters; keys are never
// spliced into SQL text.
package table
