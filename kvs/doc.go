// Package kvs is an embedded, process-local JSON key/value store with
// per-key time-to-live, size ceilings and cross-process exclusivity on the
// backing file.
//
// # Handles and the Registry
//
// A Registry maps resolved data-file paths to live Handles. Opening the
// same file twice through one Registry returns the same Handle, so the
// process never races itself for the file's exclusivity lock. A second
// process (or a second Registry) opening a held file fails with
// ErrConcurrentAccess once Config.LockTimeout elapses.
//
//	reg := kvs.NewRegistry(kvs.Config{Directory: "/var/lib/app"})
//	defer reg.Close()
//
//	h, err := reg.Open("cache.db", "")
//	if err != nil {
//	    return err
//	}
//	if err := h.Create("user:42", map[string]any{"name": "ada"}, 3600); err != nil {
//	    return err
//	}
//
// # Expiry
//
// A row with a finite ttl is logically absent once more than ttl seconds
// have passed since it was created. Every Create, Read and Delete first
// removes the touched key if it has expired, and a background sweep removes
// every expired row periodically.
//
// # Durability
//
// Mutations are batched. They become durable when the batch reaches
// MaxUncommittedTransactions or MaxUncommittedSize, when the periodic commit
// fires, on Flush, Optimize and Sweep, and on Close. Readers on the same
// Handle always see unflushed writes. Mutations made since the last flush
// are lost if the process dies without closing its Handles.
package kvs
