package lockmgr

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Dump writes the complete state into the dump file. The state is encoded while the mutex is
// held, the file is written afterward and replaced atomically via rename.
func (s *memStorageImpl) Dump() (err error) {
	defer func() {
		if err != nil {
			s.metrics.dumpErrors.Inc()
		}
	}()

	start := time.Now()
	var buf bytes.Buffer

	s.mu.Lock()
	snap := &Snapshot{
		DumpTime:    s.now(),
		ClientLocks: make(map[string][]*LockRecord, len(s.idx.clients)),
		Addresses:   s.idx.addresses,
	}
	for clientID, bucket := range s.idx.clients {
		snap.ClientLocks[clientID] = bucket.records
	}
	locks := len(s.idx.records)
	err = EncodeSnapshot(&buf, snap)
	s.mu.Unlock()

	if err != nil {
		return err
	}

	if err := writeFileAtomic(s.dumpFile, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write dump file %s: %w", s.dumpFile, err)
	}

	s.metrics.dumps.Inc()
	Logger.Infof("dumped %d locks (%d bytes) to %s in %s", locks, buf.Len(), s.dumpFile, time.Since(start))
	return nil
}

// LoadDump replaces the state with the content of the dump file.
// If the file is missing or corrupt the storage is left empty.
func (s *memStorageImpl) LoadDump() int {
	data, err := os.ReadFile(s.dumpFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			Logger.Warningf("could not read dump file %s, starting empty: %v", s.dumpFile, err)
		}
		s.Clear()
		return 0
	}

	snap, err := DecodeSnapshot(bytes.NewReader(data))
	if err != nil {
		Logger.Warningf("could not load dump file %s, starting empty: %v", s.dumpFile, err)
		s.Clear()
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// nobody knows whether the old clients are still alive, they have one grace period to reclaim their locks
	deadline := s.now().Add(s.grace)

	idx := newClientIndex()
	for clientID, records := range snap.ClientLocks {
		for _, r := range records {
			r.ReleaseDeadline = deadline
			idx.insert(clientID, r)
		}
	}
	for clientID, address := range snap.Addresses {
		idx.addresses[clientID] = address
	}
	s.idx = idx

	restored := len(idx.records)
	Logger.Infof("loaded %d locks of %d clients from %s (dumped at %s)",
		restored, len(idx.clients), s.dumpFile, snap.DumpTime.Format(time.RFC3339))
	return restored
}

// ClearDump removes the dump file. A missing file is not an error.
func (s *memStorageImpl) ClearDump() error {
	if err := os.Remove(s.dumpFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove dump file %s: %w", s.dumpFile, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// writeFileAtomic writes data into a temporary file next to path and renames it afterward
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
