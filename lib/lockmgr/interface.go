package lockmgr

import (
	"iter"
	"time"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// ILockStorage is the storage engine behind the lock service. It tracks which
// client holds which named lock. Contention is never an error: operations on
// busy or foreign locks simply return false.
type ILockStorage interface {
	// Acquire tries to take the lock for the client.
	// It returns false if the lock is held by another client, or if the client already holds it
	// and reentrant is false. A reentrant acquire of an own lock returns true without creating a
	// second record and cancels a pending release of that lock.
	Acquire(clientID, lockID string, reentrant bool) (ok bool)

	// Release removes the lock if (and only if) it is held by the client.
	Release(clientID, lockID string) (ok bool)

	// ReleaseAll schedules the release of every lock held by the client after the given timeout.
	// A timeout <= 0 uses the default grace period of the storage. Calling it again resets the deadline.
	ReleaseAll(clientID string, timeout time.Duration)

	// UnreleaseAll cancels a pending ReleaseAll for all locks of the client that did not expire yet.
	UnreleaseAll(clientID string)

	// Locked returns whether the lock is currently held by anyone.
	Locked(lockID string) (ok bool)

	// Find returns a lazy sequence of (lockID, acquiredAt) for all held locks matching the glob pattern.
	// The order of the sequence is not defined.
	Find(pattern string) iter.Seq2[string, time.Time]

	// AddSignal attaches a signal to the lock. Adding the same signal twice has no additional effect.
	AddSignal(lockID, signal string) Result

	// HasSignal checks if the signal is attached to the lock.
	HasSignal(lockID, signal string) Result

	// RemoveSignal removes the signal from the lock. ResFalse means the signal was not attached.
	RemoveSignal(lockID, signal string) Result

	// SetClientLastAddress remembers the last network address of a client.
	SetClientLastAddress(clientID, address string)

	// GetClientLastAddress returns the last known address of a client. The boolean is false if the client is unknown.
	GetClientLastAddress(clientID string) (address string, ok bool)

	// Maintenance purges expired locks and empty clients within the given time budget.
	// It returns the number of purged locks.
	Maintenance(budget time.Duration) (purged int)

	// Dump writes the complete state to the dump file.
	Dump() error

	// LoadDump replaces the state with the content of the dump file. All restored clients are put into
	// the release-all grace period. A corrupt dump results in an empty state.
	// It returns the number of restored locks.
	LoadDump() (restored int)

	// ClearDump removes the dump file if it exists.
	ClearDump() error

	// Clear drops all locks and addresses.
	Clear()

	// Stats returns diagnostic information about the storage.
	Stats() Stats

	// Close releases all resources held by the storage.
	Close() error
}

// --------------------------------------------------------------------------
// Result Type
// --------------------------------------------------------------------------

// Result is the outcome of an operation that targets an existing lock.
// It separates "the lock does not exist" from an ordinary false.
type Result uint8

const (
	ResFalse    Result = iota // 0: Lock exists, operation result is false.
	ResTrue                   // 1: Lock exists, operation result is true.
	ResNotFound               // 2: Lock does not exist.
)

// Found returns whether the targeted lock existed.
func (r Result) Found() bool {
	return r != ResNotFound
}

// Bool returns the boolean outcome. It is false for ResNotFound.
func (r Result) Bool() bool {
	return r == ResTrue
}

func (r Result) String() string {
	switch r {
	case ResFalse:
		return "false"
	case ResTrue:
		return "true"
	case ResNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// resultOf converts a boolean into a Result of an existing lock.
func resultOf(b bool) Result {
	if b {
		return ResTrue
	}
	return ResFalse
}

// --------------------------------------------------------------------------
// Stats
// --------------------------------------------------------------------------

// Stats is a read-only snapshot of the storage state.
type Stats struct {
	LockCount      int    `json:"lock_count"`      // tracked records, including those pending release
	ClientCount    int    `json:"client_count"`    // clients with at least one lock
	PendingRelease int    `json:"pending_release"` // records with a release deadline
	DumpFile       string `json:"dump_file"`       // absolute path of the dump file
}
