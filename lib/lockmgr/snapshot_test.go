package lockmgr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"testing"
	"time"
)

func testSnapshot() *Snapshot {
	now := time.Unix(1_700_000_000, 123)
	return &Snapshot{
		DumpTime: now,
		ClientLocks: map[string][]*LockRecord{
			"c1": {
				{ID: "r1", AcquiredAt: now, Signals: map[string]struct{}{"cancel": {}, "pause": {}}},
				{ID: "r2", AcquiredAt: now.Add(time.Second), ReleaseDeadline: now.Add(time.Minute)},
			},
			"c2": {
				{ID: "jobs/1", AcquiredAt: now.Add(2 * time.Second)},
			},
		},
		Addresses: map[string]string{
			"c1": "127.0.0.1:1000",
			"c3": "[::1]:3000",
		},
	}
}

func encode(t *testing.T, snap *Snapshot) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := EncodeSnapshot(&buf, snap); err != nil {
		t.Fatalf("EncodeSnapshot failed: %v", err)
	}
	return buf.Bytes()
}

// withChecksum replaces the trailing checksum, so that structural errors are reached
func withChecksum(data []byte) []byte {
	body := data[:len(data)-4]
	out := append([]byte(nil), body...)
	return binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(body))
}

func TestSnapshotRoundTrip(t *testing.T) {
	snap := testSnapshot()

	decoded, err := DecodeSnapshot(bytes.NewReader(encode(t, snap)))
	if err != nil {
		t.Fatalf("DecodeSnapshot failed: %v", err)
	}

	if !decoded.DumpTime.Equal(snap.DumpTime) {
		t.Errorf("Expected dump time %v, got %v", snap.DumpTime, decoded.DumpTime)
	}
	if len(decoded.ClientLocks) != len(snap.ClientLocks) {
		t.Fatalf("Expected %d clients, got %d", len(snap.ClientLocks), len(decoded.ClientLocks))
	}

	for clientID, expected := range snap.ClientLocks {
		got := decoded.ClientLocks[clientID]
		if len(got) != len(expected) {
			t.Fatalf("Expected %d records for %s, got %d", len(expected), clientID, len(got))
		}
		for i := range expected {
			e, g := expected[i], got[i]
			if e.ID != g.ID {
				t.Errorf("Expected record %s, got %s", e.ID, g.ID)
			}
			if !e.AcquiredAt.Equal(g.AcquiredAt) {
				t.Errorf("Expected acquired at %v, got %v", e.AcquiredAt, g.AcquiredAt)
			}
			if e.PendingRelease() != g.PendingRelease() || !e.ReleaseDeadline.Equal(g.ReleaseDeadline) {
				t.Errorf("Expected deadline %v, got %v", e.ReleaseDeadline, g.ReleaseDeadline)
			}
			if (e.Signals == nil) != (g.Signals == nil) || len(e.Signals) != len(g.Signals) {
				t.Errorf("Expected signals %v, got %v", e.Signals, g.Signals)
			}
			for s := range e.Signals {
				if !g.hasSignal(s) {
					t.Errorf("Expected signal %s on %s", s, g.ID)
				}
			}
		}
	}

	for clientID, address := range snap.Addresses {
		if decoded.Addresses[clientID] != address {
			t.Errorf("Expected address %s for %s, got %s", address, clientID, decoded.Addresses[clientID])
		}
	}
}

func TestSnapshotEmpty(t *testing.T) {
	snap := &Snapshot{DumpTime: time.Unix(0, 42)}

	decoded, err := DecodeSnapshot(bytes.NewReader(encode(t, snap)))
	if err != nil {
		t.Fatalf("DecodeSnapshot failed: %v", err)
	}
	if len(decoded.ClientLocks) != 0 || len(decoded.Addresses) != 0 {
		t.Errorf("Expected empty snapshot, got %+v", decoded)
	}
}

func TestSnapshotCorrupt(t *testing.T) {
	data := encode(t, testSnapshot())
	headerLen := len(magicNum) + 1

	tests := []struct {
		name string
		data []byte
	}{
		{"Empty", nil},
		{"TooShort", data[:headerLen]},
		{"BadMagic", withChecksum(append([]byte("NOTALOCK"), data[len(magicNum):]...))},
		{"BadVersion", func() []byte {
			c := append([]byte(nil), data...)
			c[len(magicNum)] = snapshotVersion + 1
			return withChecksum(c)
		}()},
		{"BadChecksum", func() []byte {
			c := append([]byte(nil), data...)
			c[len(c)-1] ^= 0xff
			return c
		}()},
		{"Truncated", withChecksum(data[:len(data)-20])},
		{"TrailingBytes", withChecksum(append(append([]byte(nil), data[:len(data)-4]...), 0, 0, 0, 0, 0))},
		{"HugeCount", func() []byte {
			// client count right after the dump time
			c := append([]byte(nil), data...)
			binary.LittleEndian.PutUint32(c[headerLen+8:], 0xffffffff)
			return withChecksum(c)
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := DecodeSnapshot(bytes.NewReader(tt.data))
			if err == nil {
				t.Fatalf("Expected an error, got snapshot %+v", snap)
			}
			if !errors.Is(err, ErrCorruptSnapshot) {
				t.Errorf("Expected ErrCorruptSnapshot, got %v", err)
			}
		})
	}
}

func TestSnapshotOwnerMismatch(t *testing.T) {
	tests := []struct {
		name string
		snap *Snapshot
	}{
		{"DuplicateLock", &Snapshot{
			ClientLocks: map[string][]*LockRecord{
				"c1": {{ID: "r1"}},
				"c2": {{ID: "r1"}},
			},
		}},
		{"DuplicateLockSameClient", &Snapshot{
			ClientLocks: map[string][]*LockRecord{
				"c1": {{ID: "r1"}, {ID: "r1"}},
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeSnapshot(bytes.NewReader(encode(t, tt.snap))); !errors.Is(err, ErrCorruptSnapshot) {
				t.Errorf("Expected ErrCorruptSnapshot, got %v", err)
			}
		})
	}
}
