package lockmgr

import (
	"iter"
	"path/filepath"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("lockmgr")

// memStorageImpl is the in-memory implementation of ILockStorage.
// All state lives in idx and is guarded by mu.
type memStorageImpl struct {
	mu       sync.Mutex
	idx      *clientIndex
	grace    time.Duration
	dumpFile string
	now      func() time.Time
	metrics  *storageMetrics
}

// NewMemoryLockStorage creates a new, empty in-memory lock storage.
// A nil opts is treated like DefaultOptions().
func NewMemoryLockStorage(opts *Options) ILockStorage {
	opts = opts.withDefaults()

	dumpFile, err := filepath.Abs(opts.DumpFile)
	if err != nil {
		Logger.Warningf("could not resolve absolute path of dump file %s: %v", opts.DumpFile, err)
		dumpFile = opts.DumpFile
	}

	s := &memStorageImpl{
		idx:      newClientIndex(),
		grace:    opts.GracePeriod,
		dumpFile: dumpFile,
		now:      opts.Clock,
	}

	set := opts.Metrics
	if set == nil {
		set = metrics.NewSet()
	}
	s.metrics = newStorageMetrics(set, s.Stats)

	return s
}

// --------------------------------------------------------------------------
// Interface Methods (docu see ILockStorage)
// --------------------------------------------------------------------------

func (s *memStorageImpl) Acquire(clientID, lockID string, reentrant bool) bool {
	if clientID == "" || lockID == "" {
		s.metrics.acquireBusy.Inc()
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	r, owner, ok := s.purgeIfExpired(lockID, now)

	// lock is free
	if !ok {
		s.idx.insert(clientID, newLockRecord(lockID, now))
		s.metrics.acquireGranted.Inc()
		return true
	}

	// lock is held by someone else or the client may not acquire it twice
	if owner != clientID || !reentrant {
		s.metrics.acquireBusy.Inc()
		return false
	}

	// reentrant acquire reclaims a lock that is pending release
	r.ReleaseDeadline = time.Time{}
	s.metrics.acquireGranted.Inc()
	return true
}

func (s *memStorageImpl) Release(clientID, lockID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, owner, ok := s.purgeIfExpired(lockID, s.now())
	if !ok || owner != clientID {
		return false
	}

	s.idx.remove(lockID)
	s.metrics.released.Inc()
	return true
}

func (s *memStorageImpl) ReleaseAll(clientID string, timeout time.Duration) {
	if timeout <= 0 {
		timeout = s.grace
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := s.now().Add(timeout)
	locks := s.idx.locksOf(clientID)
	for _, r := range locks {
		r.ReleaseDeadline = deadline
	}

	if len(locks) > 0 {
		Logger.Debugf("scheduled release of %d locks of client %s at %s", len(locks), clientID, deadline.Format(time.RFC3339))
	}
}

func (s *memStorageImpl) UnreleaseAll(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if purged := s.idx.purgeClient(clientID, now); purged > 0 {
		s.metrics.expired.Add(purged)
	}
	for _, r := range s.idx.locksOf(clientID) {
		r.ReleaseDeadline = time.Time{}
	}
}

func (s *memStorageImpl) Locked(lockID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _, ok := s.purgeIfExpired(lockID, s.now())
	return ok
}

func (s *memStorageImpl) Find(pattern string) iter.Seq2[string, time.Time] {
	return func(yield func(string, time.Time) bool) {
		match := compilePattern(pattern)

		// collect the candidates first, so that yield never runs while the mutex is held
		s.mu.Lock()
		candidates := make([]string, 0)
		for id := range s.idx.records {
			if match(id) {
				candidates = append(candidates, id)
			}
		}
		s.mu.Unlock()

		for _, id := range candidates {
			acquiredAt, ok := s.heldSince(id)
			if !ok {
				continue
			}
			if !yield(id, acquiredAt) {
				return
			}
		}
	}
}

func (s *memStorageImpl) AddSignal(lockID, signal string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, _, ok := s.purgeIfExpired(lockID, s.now())
	if !ok {
		return ResNotFound
	}
	r.addSignal(signal)
	return ResTrue
}

func (s *memStorageImpl) HasSignal(lockID, signal string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, _, ok := s.purgeIfExpired(lockID, s.now())
	if !ok {
		return ResNotFound
	}
	return resultOf(r.hasSignal(signal))
}

func (s *memStorageImpl) RemoveSignal(lockID, signal string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, _, ok := s.purgeIfExpired(lockID, s.now())
	if !ok {
		return ResNotFound
	}
	return resultOf(r.removeSignal(signal))
}

func (s *memStorageImpl) SetClientLastAddress(clientID, address string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.idx.addresses[clientID] = address
}

func (s *memStorageImpl) GetClientLastAddress(clientID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	address, ok := s.idx.addresses[clientID]
	return address, ok
}

func (s *memStorageImpl) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.idx = newClientIndex()
}

func (s *memStorageImpl) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := 0
	for _, r := range s.idx.records {
		if r.PendingRelease() {
			pending++
		}
	}

	return Stats{
		LockCount:      len(s.idx.records),
		ClientCount:    len(s.idx.clients),
		PendingRelease: pending,
		DumpFile:       s.dumpFile,
	}
}

func (s *memStorageImpl) Close() error {
	s.Clear()
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// purgeIfExpired drops the lock if it expired and counts the expiration.
// The caller must hold the mutex.
func (s *memStorageImpl) purgeIfExpired(lockID string, now time.Time) (*LockRecord, string, bool) {
	r, owner, ok, expired := s.idx.purgeIfExpired(lockID, now)
	if expired {
		s.metrics.expired.Inc()
	}
	return r, owner, ok
}

// heldSince returns the acquisition time of a lock that is held and not expired
func (s *memStorageImpl) heldSince(lockID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, _, ok := s.idx.lookup(lockID)
	if !ok || r.Expired(s.now()) {
		return time.Time{}, false
	}
	return r.AcquiredAt, true
}
