package lockmgr

import (
	"testing"
	"time"
)

func TestExpiredCounter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryLockStorage(&Options{
		DumpFile: t.TempDir() + "/dump.bin",
		Clock:    func() time.Time { return now },
	}).(*memStorageImpl)
	defer s.Close()

	expireAll := func(clientID string, lockIDs ...string) {
		for _, id := range lockIDs {
			s.Acquire(clientID, id, false)
		}
		s.ReleaseAll(clientID, time.Second)
		now = now.Add(time.Second)
	}

	tests := []struct {
		name  string
		purge func(lockID string)
	}{
		{"Acquire", func(id string) { s.Acquire("other", id, false) }},
		{"Release", func(id string) { s.Release("owner", id) }},
		{"Locked", func(id string) { s.Locked(id) }},
		{"AddSignal", func(id string) { s.AddSignal(id, "sig") }},
		{"HasSignal", func(id string) { s.HasSignal(id, "sig") }},
		{"RemoveSignal", func(id string) { s.RemoveSignal(id, "sig") }},
		{"UnreleaseAll", func(string) { s.UnreleaseAll("owner") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.Clear()
			before := s.metrics.expired.Get()

			expireAll("owner", "res")
			tt.purge("res")

			if got := s.metrics.expired.Get() - before; got != 1 {
				t.Errorf("Expected 1 expiration, got %d", got)
			}

			// a second lookup finds nothing to purge
			tt.purge("res")
			if got := s.metrics.expired.Get() - before; got != 1 {
				t.Errorf("Expected the expiration to be counted once, got %d", got)
			}
		})
	}
}
