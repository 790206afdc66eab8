package testing

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/livelock/lib/lockmgr"
)

// RunLockStorageBenchmarks runs all benchmarks for a lock storage implementation
func RunLockStorageBenchmarks(b *testing.B, name string, factory StorageFactory) {

	b.Run("Acquire", func(b *testing.B) {
		benchmarkAcquire(b, factory)
	})

	b.Run("AcquireContended", func(b *testing.B) {
		benchmarkAcquireContended(b, factory)
	})

	b.Run("AcquireRelease", func(b *testing.B) {
		benchmarkAcquireRelease(b, factory)
	})

	b.Run("Locked", func(b *testing.B) {
		benchmarkLocked(b, factory)
	})

	b.Run("Find", func(b *testing.B) {
		benchmarkFind(b, factory)
	})

	b.Run("Maintenance", func(b *testing.B) {
		benchmarkMaintenance(b, factory)
	})

	b.Run("Dump", func(b *testing.B) {
		benchmarkDump(b, factory)
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// fill acquires n locks spread over 100 clients
func fill(storage lockmgr.ILockStorage, n int) {
	for i := 0; i < n; i++ {
		storage.Acquire(fmt.Sprintf("client-%d", i%100), fmt.Sprintf("lock-%d", i), false)
	}
}

// Benchmark for Acquire of distinct locks
func benchmarkAcquire(b *testing.B, factory StorageFactory) {
	storage, _, _ := newStorage(b, factory)
	b.Cleanup(func() {
		storage.Close()
	})

	var worker atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		clientID := fmt.Sprintf("client-%d", worker.Add(1))
		counter := 0
		for pb.Next() {
			storage.Acquire(clientID, fmt.Sprintf("%s/%d", clientID, counter), false)
			counter++
		}
	})
}

// Benchmark for Acquire of a single busy lock
func benchmarkAcquireContended(b *testing.B, factory StorageFactory) {
	storage, _, _ := newStorage(b, factory)
	b.Cleanup(func() {
		storage.Close()
	})

	storage.Acquire("owner", "contended", false)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			storage.Acquire("other", "contended", false)
		}
	})
}

// Benchmark for an Acquire followed by a Release
func benchmarkAcquireRelease(b *testing.B, factory StorageFactory) {
	storage, _, _ := newStorage(b, factory)
	b.Cleanup(func() {
		storage.Close()
	})

	var worker atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		clientID := fmt.Sprintf("client-%d", worker.Add(1))
		for pb.Next() {
			storage.Acquire(clientID, clientID, false)
			storage.Release(clientID, clientID)
		}
	})
}

// Benchmark for Locked on a filled storage
func benchmarkLocked(b *testing.B, factory StorageFactory) {
	storage, _, _ := newStorage(b, factory)
	b.Cleanup(func() {
		storage.Close()
	})

	const numLocks = 10_000
	fill(storage, numLocks)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			storage.Locked(fmt.Sprintf("lock-%d", counter%(2*numLocks)))
			counter++
		}
	})
}

// Benchmark for Find with a prefix pattern
func benchmarkFind(b *testing.B, factory StorageFactory) {
	storage, _, _ := newStorage(b, factory)
	b.Cleanup(func() {
		storage.Close()
	})

	fill(storage, 10_000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for range storage.Find("lock-1*") {
		}
	}
}

// Benchmark for a full maintenance sweep where half of the locks expired
func benchmarkMaintenance(b *testing.B, factory StorageFactory) {
	storage, clock, _ := newStorage(b, factory)
	b.Cleanup(func() {
		storage.Close()
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		fill(storage, 10_000)
		for c := 0; c < 50; c++ {
			storage.ReleaseAll(fmt.Sprintf("client-%d", c), time.Second)
		}
		clock.Advance(time.Second)
		b.StartTimer()

		storage.Maintenance(0)
	}
}

// Benchmark for Dump of a filled storage
func benchmarkDump(b *testing.B, factory StorageFactory) {
	storage, _, _ := newStorage(b, factory)
	b.Cleanup(func() {
		storage.Close()
	})

	fill(storage, 10_000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := storage.Dump(); err != nil {
			b.Fatalf("Dump failed: %v", err)
		}
	}
}
