package lockmgr

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"
)

// checkIndex verifies that owners, records and client buckets describe the same set of locks
func checkIndex(t *testing.T, idx *clientIndex) {
	t.Helper()

	seen := 0
	for clientID, bucket := range idx.clients {
		if bucket.len() == 0 {
			t.Errorf("Expected no empty bucket, got one for %s", clientID)
		}
		ids := make(map[string]bool)
		for _, r := range bucket.records {
			if ids[r.ID] {
				t.Errorf("Duplicate record %s in bucket of %s", r.ID, clientID)
			}
			ids[r.ID] = true
			if idx.owners[r.ID] != clientID {
				t.Errorf("Expected owner of %s to be %s, got %s", r.ID, clientID, idx.owners[r.ID])
			}
			if idx.records[r.ID] != r {
				t.Errorf("Expected record table entry of %s to be the bucket record", r.ID)
			}
			seen++
		}
	}

	if seen != len(idx.owners) || seen != len(idx.records) {
		t.Errorf("Expected %d owners and records, got %d and %d", seen, len(idx.owners), len(idx.records))
	}
}

func TestClientIndexConsistency(t *testing.T) {
	idx := newClientIndex()
	now := time.Unix(1000, 0)
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 5000; i++ {
		clientID := fmt.Sprintf("c%d", rng.IntN(10))
		lockID := fmt.Sprintf("l%d", rng.IntN(200))

		switch rng.IntN(4) {
		case 0, 1:
			if _, _, ok, _ := idx.purgeIfExpired(lockID, now); !ok {
				idx.insert(clientID, newLockRecord(lockID, now))
			}
		case 2:
			idx.remove(lockID)
		case 3:
			for _, r := range idx.locksOf(clientID) {
				if rng.IntN(2) == 0 {
					r.ReleaseDeadline = now.Add(time.Duration(rng.IntN(10)) * time.Second)
				}
			}
			now = now.Add(time.Second)
			idx.purgeClient(clientID, now)
		}
	}

	checkIndex(t, idx)
}

func TestClientIndexOrder(t *testing.T) {
	idx := newClientIndex()
	now := time.Unix(0, 0)

	for _, id := range []string{"a", "b", "c", "d"} {
		idx.insert("c1", newLockRecord(id, now))
	}
	idx.remove("b")

	got := make([]string, 0)
	for _, r := range idx.locksOf("c1") {
		got = append(got, r.ID)
	}
	expected := []string{"a", "c", "d"}
	if fmt.Sprint(got) != fmt.Sprint(expected) {
		t.Errorf("Expected insertion order %v, got %v", expected, got)
	}
}

func TestClientIndexPurgeClient(t *testing.T) {
	idx := newClientIndex()
	now := time.Unix(100, 0)

	expired := newLockRecord("expired", now)
	expired.ReleaseDeadline = now
	pending := newLockRecord("pending", now)
	pending.ReleaseDeadline = now.Add(time.Second)

	idx.insert("c1", expired)
	idx.insert("c1", newLockRecord("held", now))
	idx.insert("c1", pending)

	if purged := idx.purgeClient("c1", now); purged != 1 {
		t.Errorf("Expected 1 purged record, got %d", purged)
	}
	if _, _, ok := idx.lookup("expired"); ok {
		t.Errorf("Expected expired record to be gone")
	}
	if len(idx.locksOf("c1")) != 2 {
		t.Errorf("Expected 2 remaining records, got %d", len(idx.locksOf("c1")))
	}

	if purged := idx.purgeClient("c1", now.Add(time.Second)); purged != 1 {
		t.Errorf("Expected 1 purged record, got %d", purged)
	}
	idx.remove("held")
	if _, ok := idx.clients["c1"]; ok {
		t.Errorf("Expected bucket of c1 to be removed once empty")
	}
	checkIndex(t, idx)
}

func TestLockRecordSignals(t *testing.T) {
	r := newLockRecord("r", time.Now())

	r.addSignal("a")
	r.addSignal("a")
	if len(r.Signals) != 1 {
		t.Errorf("Expected 1 signal, got %d", len(r.Signals))
	}

	if !r.removeSignal("a") || r.removeSignal("a") {
		t.Errorf("Expected remove to report presence of the signal")
	}
	if r.Signals != nil {
		t.Errorf("Expected signals to fall back to nil")
	}
}
