package lockmgr

import (
	"time"
)

// LockRecord stores a held lock with its metadata
type LockRecord struct {
	ID              string              // Name of the locked resource
	AcquiredAt      time.Time           // Time of acquisition (informational only)
	ReleaseDeadline time.Time           // Zero value means the lock is held indefinitely
	Signals         map[string]struct{} // Signals attached by clients, nil if there are none
}

// newLockRecord creates a record that is held indefinitely
func newLockRecord(id string, now time.Time) *LockRecord {
	return &LockRecord{
		ID:         id,
		AcquiredAt: now,
	}
}

// Expired returns whether the release deadline of the record has passed at the given time
func (r *LockRecord) Expired(now time.Time) bool {
	return !r.ReleaseDeadline.IsZero() && !now.Before(r.ReleaseDeadline)
}

// PendingRelease returns whether a release deadline is set
func (r *LockRecord) PendingRelease() bool {
	return !r.ReleaseDeadline.IsZero()
}

// addSignal adds the signal to the record
func (r *LockRecord) addSignal(signal string) {
	if r.Signals == nil {
		r.Signals = make(map[string]struct{})
	}
	r.Signals[signal] = struct{}{}
}

// hasSignal checks if the signal is attached to the record
func (r *LockRecord) hasSignal(signal string) bool {
	_, ok := r.Signals[signal]
	return ok
}

// removeSignal removes the signal and returns whether it was attached.
// The signal set falls back to nil once it is empty.
func (r *LockRecord) removeSignal(signal string) bool {
	if _, ok := r.Signals[signal]; !ok {
		return false
	}
	delete(r.Signals, signal)
	if len(r.Signals) == 0 {
		r.Signals = nil
	}
	return true
}
