package testing

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/livelock/lib/lockmgr"
)

// StorageFactory is a function that creates a new instance of an ILockStorage implementation
type StorageFactory func(opts *lockmgr.Options) lockmgr.ILockStorage

// RunLockStorageTests runs a comprehensive test suite for an ILockStorage implementation.
func RunLockStorageTests(t *testing.T, name string, factory StorageFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Acquire&Release", func(t *testing.T) {
			testAcquireRelease(t, factory)
		})

		t.Run("Reentrant", func(t *testing.T) {
			testReentrant(t, factory)
		})

		t.Run("ReleaseAll", func(t *testing.T) {
			testReleaseAll(t, factory)
		})

		t.Run("ReleaseAllDefaultGrace", func(t *testing.T) {
			testReleaseAllDefaultGrace(t, factory)
		})

		t.Run("UnreleaseAll", func(t *testing.T) {
			testUnreleaseAll(t, factory)
		})

		t.Run("ExpiredLockIsFree", func(t *testing.T) {
			testExpiredLockIsFree(t, factory)
		})

		t.Run("Find", func(t *testing.T) {
			testFind(t, factory)
		})

		t.Run("FindShellSyntax", func(t *testing.T) {
			testFindShellSyntax(t, factory)
		})

		t.Run("Signals", func(t *testing.T) {
			testSignals(t, factory)
		})

		t.Run("ClientAddress", func(t *testing.T) {
			testClientAddress(t, factory)
		})

		t.Run("Maintenance", func(t *testing.T) {
			testMaintenance(t, factory)
		})

		t.Run("DumpLoad", func(t *testing.T) {
			testDumpLoad(t, factory)
		})

		t.Run("LoadCorruptDump", func(t *testing.T) {
			testLoadCorruptDump(t, factory)
		})

		t.Run("ClearDump", func(t *testing.T) {
			testClearDump(t, factory)
		})

		t.Run("Clear", func(t *testing.T) {
			testClear(t, factory)
		})

		t.Run("ConcurrentAcquire", func(t *testing.T) {
			testConcurrentAcquire(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Clock is a manually advanced time source for deterministic expiry tests
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock starting at a fixed point in time
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the current time of the clock
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newStorage creates a storage with a fake clock and a dump file in a temporary directory
func newStorage(t testing.TB, factory StorageFactory) (lockmgr.ILockStorage, *Clock, *lockmgr.Options) {
	clock := NewClock()
	opts := &lockmgr.Options{
		DumpFile:    filepath.Join(t.TempDir(), "dump.bin"),
		GracePeriod: 30 * time.Second,
		Clock:       clock.Now,
	}
	return factory(opts), clock, opts
}

// collect drains a find sequence into a sorted slice of lock ids
func collect(storage lockmgr.ILockStorage, pattern string) []string {
	ids := make([]string, 0)
	for id := range storage.Find(pattern) {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testAcquireRelease(t *testing.T, factory StorageFactory) {
	storage, _, _ := newStorage(t, factory)
	defer storage.Close()

	if !storage.Acquire("clientA", "res1", false) {
		t.Errorf("Expected clientA to acquire res1")
	}
	if storage.Acquire("clientB", "res1", false) {
		t.Errorf("Expected clientB to fail acquiring res1 held by clientA")
	}
	if storage.Acquire("clientB", "res1", true) {
		t.Errorf("Expected reentrant acquire of a foreign lock to fail")
	}
	if storage.Release("clientB", "res1") {
		t.Errorf("Expected clientB to fail releasing res1 held by clientA")
	}
	if !storage.Locked("res1") {
		t.Errorf("Expected res1 to still be locked after foreign release")
	}
	if !storage.Release("clientA", "res1") {
		t.Errorf("Expected clientA to release res1")
	}
	if storage.Locked("res1") {
		t.Errorf("Expected res1 to be unlocked after release")
	}
	if storage.Release("clientA", "res1") {
		t.Errorf("Expected second release to return false")
	}
	if storage.Release("clientC", "never-held") {
		t.Errorf("Expected release of an unknown lock to return false")
	}

	if stats := storage.Stats(); stats.LockCount != 0 || stats.ClientCount != 0 {
		t.Errorf("Expected empty storage, got %+v", stats)
	}

	// empty ids are rejected
	t.Run("EmptyIDs", func(t *testing.T) {
		if storage.Acquire("", "res1", false) {
			t.Errorf("Expected acquire with an empty client id to fail")
		}
		if storage.Acquire("clientA", "", false) {
			t.Errorf("Expected acquire with an empty lock id to fail")
		}
		if storage.Acquire("", "", true) {
			t.Errorf("Expected reentrant acquire with empty ids to fail")
		}
		if storage.Locked("") || storage.Locked("res1") {
			t.Errorf("Expected no lock to be created for empty ids")
		}
		if stats := storage.Stats(); stats.LockCount != 0 || stats.ClientCount != 0 {
			t.Errorf("Expected empty storage, got %+v", stats)
		}
	})
}

func testReentrant(t *testing.T, factory StorageFactory) {
	storage, _, _ := newStorage(t, factory)
	defer storage.Close()

	if !storage.Acquire("c1", "plain", false) {
		t.Fatalf("Expected first acquire to succeed")
	}
	if storage.Acquire("c1", "plain", false) {
		t.Errorf("Expected non reentrant second acquire to fail")
	}

	if !storage.Acquire("c1", "re", true) {
		t.Fatalf("Expected first reentrant acquire to succeed")
	}
	if !storage.Acquire("c1", "re", true) {
		t.Errorf("Expected second reentrant acquire to succeed")
	}

	if stats := storage.Stats(); stats.LockCount != 2 {
		t.Errorf("Expected exactly 2 lock records, got %d", stats.LockCount)
	}

	// one release is enough for a reentrant lock
	if !storage.Release("c1", "re") {
		t.Errorf("Expected release to succeed")
	}
	if storage.Locked("re") {
		t.Errorf("Expected lock to be free after a single release")
	}
}

func testReleaseAll(t *testing.T, factory StorageFactory) {
	storage, clock, _ := newStorage(t, factory)
	defer storage.Close()

	storage.Acquire("clientA", "res1", false)
	storage.Acquire("clientA", "res2", false)
	storage.ReleaseAll("clientA", 5*time.Second)

	if !storage.Locked("res1") {
		t.Errorf("Expected res1 to be locked during the grace period")
	}
	if stats := storage.Stats(); stats.PendingRelease != 2 {
		t.Errorf("Expected 2 locks pending release, got %d", stats.PendingRelease)
	}
	if storage.Acquire("clientB", "res1", false) {
		t.Errorf("Expected lock pending release to still be busy")
	}

	// calling it again resets the deadline
	clock.Advance(4 * time.Second)
	storage.ReleaseAll("clientA", 5*time.Second)
	clock.Advance(4 * time.Second)
	if !storage.Locked("res1") {
		t.Errorf("Expected res1 to be locked after the deadline was reset")
	}

	clock.Advance(time.Second)
	if storage.Locked("res1") {
		t.Errorf("Expected res1 to be unlocked after the deadline")
	}
	if storage.Locked("res2") {
		t.Errorf("Expected res2 to be unlocked after the deadline")
	}

	// unknown clients are ignored
	storage.ReleaseAll("unknown", time.Second)
}

func testReleaseAllDefaultGrace(t *testing.T, factory StorageFactory) {
	storage, clock, opts := newStorage(t, factory)
	defer storage.Close()

	storage.Acquire("clientA", "res1", false)
	storage.ReleaseAll("clientA", 0)

	clock.Advance(opts.GracePeriod - time.Millisecond)
	if !storage.Locked("res1") {
		t.Errorf("Expected res1 to be locked before the default grace period elapsed")
	}

	clock.Advance(time.Millisecond)
	if storage.Locked("res1") {
		t.Errorf("Expected res1 to be unlocked once the default grace period elapsed")
	}
}

func testUnreleaseAll(t *testing.T, factory StorageFactory) {
	storage, clock, _ := newStorage(t, factory)
	defer storage.Close()

	storage.Acquire("clientA", "short", false)
	storage.Acquire("clientA", "long", false)

	storage.ReleaseAll("clientA", 2*time.Second)
	storage.UnreleaseAll("clientA")

	if stats := storage.Stats(); stats.PendingRelease != 0 {
		t.Errorf("Expected no pending releases after UnreleaseAll, got %d", stats.PendingRelease)
	}

	clock.Advance(time.Hour)
	if !storage.Locked("short") || !storage.Locked("long") {
		t.Errorf("Expected locks to be held indefinitely after UnreleaseAll")
	}

	// expired locks can not be restored
	storage.ReleaseAll("clientA", time.Second)
	clock.Advance(2 * time.Second)
	storage.UnreleaseAll("clientA")
	if storage.Locked("short") || storage.Locked("long") {
		t.Errorf("Expected expired locks to stay released after UnreleaseAll")
	}

	// reentrant acquire reclaims a single lock
	storage.Acquire("clientA", "res", false)
	storage.ReleaseAll("clientA", time.Second)
	if !storage.Acquire("clientA", "res", true) {
		t.Fatalf("Expected reentrant acquire to reclaim a lock pending release")
	}
	clock.Advance(time.Minute)
	if !storage.Locked("res") {
		t.Errorf("Expected reclaimed lock to be held indefinitely")
	}
}

func testExpiredLockIsFree(t *testing.T, factory StorageFactory) {
	storage, clock, _ := newStorage(t, factory)
	defer storage.Close()

	storage.Acquire("clientA", "res1", false)
	storage.ReleaseAll("clientA", time.Second)
	clock.Advance(time.Second)

	if !storage.Acquire("clientB", "res1", false) {
		t.Fatalf("Expected clientB to acquire an expired lock")
	}
	if storage.Release("clientA", "res1") {
		t.Errorf("Expected former owner to fail releasing the lock")
	}

	// the new owner holds it indefinitely
	clock.Advance(time.Hour)
	if !storage.Locked("res1") {
		t.Errorf("Expected res1 to be held by clientB")
	}
	if stats := storage.Stats(); stats.LockCount != 1 || stats.ClientCount != 1 {
		t.Errorf("Expected exactly one lock of one client, got %+v", stats)
	}
}

func testFind(t *testing.T, factory StorageFactory) {
	storage, clock, _ := newStorage(t, factory)
	defer storage.Close()

	if ids := collect(storage, "*"); len(ids) != 0 {
		t.Errorf("Expected no results on an empty storage, got %v", ids)
	}

	storage.Acquire("clientA", "jobs/1", false)
	clock.Advance(time.Second)
	storage.Acquire("clientA", "jobs/2", false)
	storage.Acquire("clientB", "jobs/10", false)
	storage.Acquire("clientB", "other", false)
	storage.Acquire("clientC", "tmp/1", false)

	tests := []struct {
		pattern  string
		expected []string
	}{
		{"jobs/*", []string{"jobs/1", "jobs/10", "jobs/2"}},
		{"jobs/?", []string{"jobs/1", "jobs/2"}},
		{"jobs/[12]", []string{"jobs/1", "jobs/2"}},
		{"other", []string{"other"}},
		{"*", []string{"jobs/1", "jobs/10", "jobs/2", "other", "tmp/1"}},
		{"nomatch*", []string{}},
		{"[", []string{}},
		{"jobs/[", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			if ids := collect(storage, tt.pattern); !equalStrings(ids, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, ids)
			}
		})
	}

	// acquisition time is reported
	for id, acquiredAt := range storage.Find("jobs/2") {
		if !acquiredAt.Equal(clock.Now()) {
			t.Errorf("Expected %s to be acquired at %v, got %v", id, clock.Now(), acquiredAt)
		}
	}

	// expired locks are skipped
	storage.ReleaseAll("clientC", time.Second)
	clock.Advance(time.Second)
	if ids := collect(storage, "tmp/*"); len(ids) != 0 {
		t.Errorf("Expected expired locks to be skipped, got %v", ids)
	}

	// the caller may stop early and the sequence can be iterated again
	seq := storage.Find("*")
	count := 0
	for range seq {
		count++
		break
	}
	if count != 1 {
		t.Errorf("Expected to stop after 1 element, got %d", count)
	}
	count = 0
	for range seq {
		count++
	}
	if count != 4 {
		t.Errorf("Expected 4 elements on second iteration, got %d", count)
	}
}

func testFindShellSyntax(t *testing.T, factory StorageFactory) {
	storage, _, _ := newStorage(t, factory)
	defer storage.Close()

	for _, id := range []string{"[", "a{b", `x\y`, "{a,b}", "a", "b", "c]", "a-b", "-"} {
		if !storage.Acquire("clientA", id, false) {
			t.Fatalf("Expected to acquire %q", id)
		}
	}

	tests := []struct {
		name     string
		pattern  string
		expected []string
	}{
		{"UnterminatedClass", "[", []string{"["}},
		{"Brace", "a{b", []string{"a{b"}},
		{"Backslash", `x\y`, []string{`x\y`}},
		{"NoAlternation", "{a,b}", []string{"{a,b}"}},
		{"ClosingBracket", "c]", []string{"c]"}},
		{"AnyWithBrace", "*{*", []string{"a{b", "{a,b}"}},
		{"Class", "[ab]", []string{"a", "b"}},
		{"NegatedClass", "[!ab-]", []string{"["}},
		{"Range", "[a-b]", []string{"a", "b"}},
		{"RangeAndChar", "[a-b-]", []string{"-", "a", "b"}},
		{"BracketInClass", "[[]", []string{"["}},
		{"DashInClass", "a[-]b", []string{"a-b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ids := collect(storage, tt.pattern); !equalStrings(ids, tt.expected) {
				t.Errorf("Expected %v for %q, got %v", tt.expected, tt.pattern, ids)
			}
		})
	}
}

func testSignals(t *testing.T, factory StorageFactory) {
	storage, clock, _ := newStorage(t, factory)
	defer storage.Close()

	if res := storage.AddSignal("missing-lock", "cancel"); res != lockmgr.ResNotFound {
		t.Errorf("Expected ResNotFound for missing lock, got %v", res)
	}
	if res := storage.HasSignal("missing-lock", "cancel"); res != lockmgr.ResNotFound {
		t.Errorf("Expected ResNotFound for missing lock, got %v", res)
	}
	if res := storage.RemoveSignal("missing-lock", "cancel"); res != lockmgr.ResNotFound {
		t.Errorf("Expected ResNotFound for missing lock, got %v", res)
	}

	storage.Acquire("clientA", "res1", false)

	if res := storage.HasSignal("res1", "cancel"); res != lockmgr.ResFalse {
		t.Errorf("Expected ResFalse before adding the signal, got %v", res)
	}
	for i := 0; i < 2; i++ {
		if res := storage.AddSignal("res1", "cancel"); res != lockmgr.ResTrue {
			t.Errorf("Expected ResTrue when adding a signal, got %v", res)
		}
	}
	if res := storage.HasSignal("res1", "cancel"); res != lockmgr.ResTrue {
		t.Errorf("Expected ResTrue after adding the signal, got %v", res)
	}
	if res := storage.RemoveSignal("res1", "cancel"); res != lockmgr.ResTrue {
		t.Errorf("Expected ResTrue when removing an attached signal, got %v", res)
	}
	if res := storage.RemoveSignal("res1", "cancel"); res != lockmgr.ResFalse {
		t.Errorf("Expected ResFalse when removing a signal twice, got %v", res)
	}
	if res := storage.HasSignal("res1", "cancel"); res != lockmgr.ResFalse {
		t.Errorf("Expected ResFalse after removing the signal, got %v", res)
	}

	// signals of an expired lock are gone
	storage.AddSignal("res1", "stop")
	storage.ReleaseAll("clientA", time.Second)
	clock.Advance(time.Second)
	if res := storage.HasSignal("res1", "stop"); res != lockmgr.ResNotFound {
		t.Errorf("Expected ResNotFound for an expired lock, got %v", res)
	}

	// a new owner starts without signals
	storage.Acquire("clientB", "res1", false)
	if res := storage.HasSignal("res1", "stop"); res != lockmgr.ResFalse {
		t.Errorf("Expected signals to be reset for a new lock, got %v", res)
	}
}

func testClientAddress(t *testing.T, factory StorageFactory) {
	storage, _, _ := newStorage(t, factory)
	defer storage.Close()

	if _, ok := storage.GetClientLastAddress("clientA"); ok {
		t.Errorf("Expected unknown client to have no address")
	}

	storage.SetClientLastAddress("clientA", "10.0.0.1:4000")
	storage.SetClientLastAddress("clientA", "10.0.0.2:4000")

	address, ok := storage.GetClientLastAddress("clientA")
	if !ok || address != "10.0.0.2:4000" {
		t.Errorf("Expected address 10.0.0.2:4000, got %q (found=%v)", address, ok)
	}

	// the address does not depend on lock ownership
	storage.Acquire("clientA", "res1", false)
	storage.Release("clientA", "res1")
	if _, ok := storage.GetClientLastAddress("clientA"); !ok {
		t.Errorf("Expected address to survive the release of all locks")
	}
}

func testMaintenance(t *testing.T, factory StorageFactory) {
	storage, clock, _ := newStorage(t, factory)
	defer storage.Close()

	for c := 0; c < 10; c++ {
		for l := 0; l < 10; l++ {
			storage.Acquire(fmt.Sprintf("client-%d", c), fmt.Sprintf("lock-%d-%d", c, l), false)
		}
	}

	// half of the clients disconnect
	for c := 0; c < 5; c++ {
		storage.ReleaseAll(fmt.Sprintf("client-%d", c), time.Second)
	}

	if purged := storage.Maintenance(0); purged != 0 {
		t.Errorf("Expected nothing to be purged before the deadline, got %d", purged)
	}

	clock.Advance(time.Second)
	if purged := storage.Maintenance(0); purged != 50 {
		t.Errorf("Expected 50 purged locks, got %d", purged)
	}

	stats := storage.Stats()
	if stats.LockCount != 50 || stats.ClientCount != 5 || stats.PendingRelease != 0 {
		t.Errorf("Expected 50 locks of 5 clients, got %+v", stats)
	}

	// a tiny budget still makes progress
	for c := 5; c < 10; c++ {
		storage.ReleaseAll(fmt.Sprintf("client-%d", c), time.Second)
	}
	clock.Advance(time.Second)

	total := 0
	for i := 0; i < 10 && storage.Stats().LockCount > 0; i++ {
		total += storage.Maintenance(time.Nanosecond)
	}
	if total != 50 {
		t.Errorf("Expected 50 purged locks over multiple sweeps, got %d", total)
	}
	if stats := storage.Stats(); stats.LockCount != 0 || stats.ClientCount != 0 {
		t.Errorf("Expected empty storage after maintenance, got %+v", stats)
	}
}

func testDumpLoad(t *testing.T, factory StorageFactory) {
	storage, clock, opts := newStorage(t, factory)
	defer storage.Close()

	storage.Acquire("c1", "r1", false)
	storage.Acquire("c1", "r2", false)
	storage.Acquire("c2", "r3", false)
	storage.AddSignal("r1", "cancel")
	storage.AddSignal("r1", "pause")
	storage.SetClientLastAddress("c1", "127.0.0.1:1000")
	storage.SetClientLastAddress("c3", "127.0.0.1:3000")

	if err := storage.Dump(); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	if _, err := os.Stat(opts.DumpFile); err != nil {
		t.Fatalf("Expected dump file to exist: %v", err)
	}

	restored := factory(opts)
	defer restored.Close()

	if n := restored.LoadDump(); n != 3 {
		t.Fatalf("Expected 3 restored locks, got %d", n)
	}

	stats := restored.Stats()
	if stats.LockCount != 3 || stats.ClientCount != 2 || stats.PendingRelease != 3 {
		t.Errorf("Expected 3 locks of 2 clients pending release, got %+v", stats)
	}
	if !restored.Locked("r1") {
		t.Errorf("Expected r1 to be locked after load")
	}
	if restored.Acquire("c2", "r1", false) {
		t.Errorf("Expected r1 to still be owned by c1")
	}
	if !restored.Acquire("c1", "r1", true) {
		t.Errorf("Expected c1 to reclaim r1 with a reentrant acquire")
	}
	if res := restored.HasSignal("r1", "pause"); res != lockmgr.ResTrue {
		t.Errorf("Expected signal pause to survive the dump, got %v", res)
	}
	if address, ok := restored.GetClientLastAddress("c3"); !ok || address != "127.0.0.1:3000" {
		t.Errorf("Expected address of c3 to survive the dump, got %q", address)
	}

	found := map[string]time.Time{}
	for id, acquiredAt := range restored.Find("*") {
		found[id] = acquiredAt
	}
	if len(found) != 3 || !found["r2"].Equal(clock.Now()) {
		t.Errorf("Expected 3 locks with their acquisition time, got %v", found)
	}

	// c2 reconnects within the grace period, c1 does not (except r1)
	restored.UnreleaseAll("c2")
	clock.Advance(opts.GracePeriod)

	if !restored.Locked("r1") || !restored.Locked("r3") {
		t.Errorf("Expected reclaimed locks to be held")
	}
	if restored.Locked("r2") {
		t.Errorf("Expected r2 to expire after the grace period")
	}
}

func testLoadCorruptDump(t *testing.T, factory StorageFactory) {
	storage, _, opts := newStorage(t, factory)
	defer storage.Close()

	storage.Acquire("c1", "r1", false)
	if err := storage.Dump(); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}

	data, err := os.ReadFile(opts.DumpFile)
	if err != nil {
		t.Fatalf("Failed to read dump: %v", err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"Empty", []byte{}},
		{"Garbage", []byte("this is not a dump file at all")},
		{"Truncated", data[:len(data)/2]},
		{"FlippedByte", func() []byte {
			c := append([]byte(nil), data...)
			c[len(c)/2] ^= 0xff
			return c
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := os.WriteFile(opts.DumpFile, tt.data, 0o644); err != nil {
				t.Fatalf("Failed to write dump: %v", err)
			}

			s := factory(opts)
			defer s.Close()
			s.Acquire("someone", "stale", false)

			if n := s.LoadDump(); n != 0 {
				t.Errorf("Expected 0 restored locks, got %d", n)
			}
			if stats := s.Stats(); stats.LockCount != 0 {
				t.Errorf("Expected empty storage after corrupt dump, got %+v", stats)
			}
		})
	}

	t.Run("Missing", func(t *testing.T) {
		missing := *opts
		missing.DumpFile = filepath.Join(t.TempDir(), "missing.bin")
		s := factory(&missing)
		defer s.Close()

		if n := s.LoadDump(); n != 0 {
			t.Errorf("Expected 0 restored locks, got %d", n)
		}
	})
}

func testClearDump(t *testing.T, factory StorageFactory) {
	storage, _, opts := newStorage(t, factory)
	defer storage.Close()

	// nothing to remove yet
	if err := storage.ClearDump(); err != nil {
		t.Errorf("Expected ClearDump without a dump file to succeed, got %v", err)
	}

	storage.Acquire("c1", "r1", false)
	if err := storage.Dump(); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	if err := storage.ClearDump(); err != nil {
		t.Fatalf("ClearDump failed: %v", err)
	}
	if _, err := os.Stat(opts.DumpFile); !os.IsNotExist(err) {
		t.Errorf("Expected dump file to be removed, got %v", err)
	}

	if stats := storage.Stats(); stats.LockCount != 1 {
		t.Errorf("Expected ClearDump to keep the in-memory state, got %+v", stats)
	}
	if !filepath.IsAbs(storage.Stats().DumpFile) {
		t.Errorf("Expected absolute dump file path, got %s", storage.Stats().DumpFile)
	}
}

func testClear(t *testing.T, factory StorageFactory) {
	storage, _, _ := newStorage(t, factory)
	defer storage.Close()

	storage.Acquire("c1", "r1", false)
	storage.SetClientLastAddress("c1", "addr")
	storage.Clear()

	if storage.Locked("r1") {
		t.Errorf("Expected r1 to be unlocked after Clear")
	}
	if _, ok := storage.GetClientLastAddress("c1"); ok {
		t.Errorf("Expected addresses to be dropped by Clear")
	}
	if !storage.Acquire("c2", "r1", false) {
		t.Errorf("Expected r1 to be acquirable after Clear")
	}
}

func testConcurrentAcquire(t *testing.T, factory StorageFactory) {
	storage, _, _ := newStorage(t, factory)
	defer storage.Close()

	const (
		clients = 50
		rounds  = 100
	)

	var wg sync.WaitGroup
	var granted atomic.Int64

	for c := 0; c < clients; c++ {
		wg.Add(1)
		go func(clientID string) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				if storage.Acquire(clientID, "contended", false) {
					granted.Add(1)
				}
				storage.Acquire(clientID, fmt.Sprintf("%s/%d", clientID, r), false)
				storage.Locked("contended")
				for range storage.Find(clientID + "/*") {
				}
			}
			storage.ReleaseAll(clientID, time.Hour)
		}(fmt.Sprintf("client-%d", c))
	}
	wg.Wait()

	if granted.Load() != 1 {
		t.Errorf("Expected exactly one client to acquire the contended lock, got %d", granted.Load())
	}
	if stats := storage.Stats(); stats.LockCount != clients*rounds+1 {
		t.Errorf("Expected %d locks, got %d", clients*rounds+1, stats.LockCount)
	}
}
