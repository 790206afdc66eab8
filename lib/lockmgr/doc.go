// Package lockmgr implements the lock storage engine of livelock. It tracks
// which client holds which named lock, keeps locks of disconnected clients
// alive for a grace period and survives restarts through a binary dump file.
//
// Core Functionality:
//   - Lock acquisition and release with ownership verification
//   - Deferred release of all locks of a client (ReleaseAll / UnreleaseAll)
//   - Glob based enumeration of held locks (Find)
//   - Signals: small string flags attached to a held lock
//   - Last known network address per client
//   - Time boxed maintenance sweep for expired locks
//   - Dump / LoadDump of the complete state
//
// Implementation Approach:
//
//	The storage keeps a single index guarded by one mutex:
//
//	- owners:  lock id   -> client id
//	- clients: client id -> ordered list of the client's lock records
//	- records: lock id   -> lock record
//
//	A lock record carries its acquisition time, an optional release
//	deadline and an optional set of signals. Every mutation updates all
//	maps under the mutex, so a lock id is in owners iff its record is in
//	the bucket of its owner.
//
//	- Lazy Expiry: A record whose release deadline has passed is treated
//	  as absent by every operation. Acquire, Release, Locked and the signal
//	  operations remove such a record when they touch it. Find skips it.
//
//	- Grace Period: ReleaseAll does not remove anything. It only sets the
//	  release deadline of every lock of the client. UnreleaseAll (or a
//	  reentrant Acquire of a single lock) clears the deadline again, as
//	  long as the lock did not expire yet.
//
//	- Maintenance: The maintenance sweep visits the clients in random order
//	  and stops once its time budget is used up. The budget is checked
//	  between two clients, never in the middle of one. Since expiry is
//	  enforced lazily, the sweep only frees memory.
//
//	- Dump: The state is encoded into memory while the mutex is held and
//	  written to a temporary file afterward, which then replaces the dump
//	  file. LoadDump is all or nothing: a missing or corrupt dump file
//	  results in an empty storage. All restored locks get the default grace
//	  period, since the storage can not know which clients are still alive.
//
// Dump File Format:
//
//	The dump is a versioned little endian binary format, protected by a
//	CRC32 checksum (see EncodeSnapshot):
//
//	magic | version | dump time | client -> locks | lock -> client | client -> address | crc32
//
//	The lock -> client table is redundant and cross-checked on load.
//
// Thread Safety:
//
//	All methods of ILockStorage are safe for concurrent use. No method
//	blocks on another client: acquiring a busy lock returns false at once.
//	The sequence returned by Find does not hold the mutex while the caller
//	consumes it.
//
// Usage Example:
//
//	storage := lockmgr.NewMemoryLockStorage(&lockmgr.Options{
//	    DumpFile:    "/var/lib/livelock/dump.bin",
//	    GracePeriod: 30 * time.Second,
//	})
//	defer storage.Close()
//
//	storage.LoadDump()
//
//	if storage.Acquire("client-1", "jobs/42", false) {
//	    // do the work ...
//	    storage.Release("client-1", "jobs/42")
//	}
//
//	for id, acquiredAt := range storage.Find("jobs/*") {
//	    fmt.Println(id, acquiredAt)
//	}
//
//	// client-1 disconnected, keep its locks for the grace period
//	storage.ReleaseAll("client-1", 0)
package lockmgr
