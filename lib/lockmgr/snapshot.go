package lockmgr

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"time"
)

const (
	magicNum        = "LVLOCK\x00\x00" // File format identifier
	snapshotVersion = 1                // Snapshot format version
)

var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// Snapshot is the complete state of a lock storage at the time of a dump.
// The lock -> client association is implied by ClientLocks.
type Snapshot struct {
	DumpTime    time.Time
	ClientLocks map[string][]*LockRecord // client id -> ordered records of the client
	Addresses   map[string]string        // client id -> last known address
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// EncodeSnapshot writes the snapshot in the binary dump format to w.
//
// Format (little endian):
//
//	magic "LVLOCK\x00\x00" | version u8 | dump time i64 |
//	clients u32 { client str | records u32 { record } } |
//	owners u32 { lock str | client str } |
//	addresses u32 { client str | address str } |
//	crc32 u32 (IEEE, over everything before)
//
// A record is: id str | acquired at i64 | has deadline u8 | deadline i64 | has signals u8 [| signals u32 { str }].
// A str is its length as u32 followed by the bytes.
func EncodeSnapshot(w io.Writer, snap *Snapshot) error {
	bw := bufio.NewWriter(w)
	crc := crc32.NewIEEE()
	enc := &snapshotWriter{w: io.MultiWriter(bw, crc)}

	enc.raw([]byte(magicNum))
	enc.u8(snapshotVersion)
	enc.time(snap.DumpTime)

	// client -> locks
	enc.u32(uint32(len(snap.ClientLocks)))
	for clientID, records := range snap.ClientLocks {
		enc.str(clientID)
		enc.u32(uint32(len(records)))
		for _, r := range records {
			enc.record(r)
		}
	}

	// lock -> client
	owners := 0
	for _, records := range snap.ClientLocks {
		owners += len(records)
	}
	enc.u32(uint32(owners))
	for clientID, records := range snap.ClientLocks {
		for _, r := range records {
			enc.str(r.ID)
			enc.str(clientID)
		}
	}

	// client -> address
	enc.u32(uint32(len(snap.Addresses)))
	for clientID, address := range snap.Addresses {
		enc.str(clientID)
		enc.str(address)
	}

	if enc.err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", enc.err)
	}

	// the checksum is not part of itself
	if err := binary.Write(bw, binary.LittleEndian, crc.Sum32()); err != nil {
		return fmt.Errorf("failed to write checksum: %w", err)
	}
	return bw.Flush()
}

// snapshotWriter writes primitive values and remembers the first error
type snapshotWriter struct {
	w   io.Writer
	err error
	buf [8]byte
}

func (e *snapshotWriter) raw(b []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(b)
}

func (e *snapshotWriter) u8(v uint8) {
	e.buf[0] = v
	e.raw(e.buf[:1])
}

func (e *snapshotWriter) u32(v uint32) {
	binary.LittleEndian.PutUint32(e.buf[:4], v)
	e.raw(e.buf[:4])
}

func (e *snapshotWriter) i64(v int64) {
	binary.LittleEndian.PutUint64(e.buf[:8], uint64(v))
	e.raw(e.buf[:8])
}

func (e *snapshotWriter) time(t time.Time) {
	e.i64(t.UnixNano())
}

func (e *snapshotWriter) str(s string) {
	e.u32(uint32(len(s)))
	e.raw([]byte(s))
}

func (e *snapshotWriter) flag(b bool) {
	if b {
		e.u8(1)
	} else {
		e.u8(0)
	}
}

func (e *snapshotWriter) record(r *LockRecord) {
	e.str(r.ID)
	e.time(r.AcquiredAt)

	e.flag(r.PendingRelease())
	if r.PendingRelease() {
		e.time(r.ReleaseDeadline)
	} else {
		e.i64(0)
	}

	e.flag(r.Signals != nil)
	if r.Signals != nil {
		e.u32(uint32(len(r.Signals)))
		for s := range r.Signals {
			e.str(s)
		}
	}
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

// DecodeSnapshot reads a snapshot written by EncodeSnapshot.
// Every malformed input results in an error wrapping ErrCorruptSnapshot.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	// Verify header and checksum before looking at the body
	if len(data) < len(magicNum)+1+4 {
		return nil, fmt.Errorf("%w: snapshot too short (%d bytes)", ErrCorruptSnapshot, len(data))
	}
	if string(data[:len(magicNum)]) != magicNum {
		return nil, fmt.Errorf("%w: magic number mismatch", ErrCorruptSnapshot)
	}
	if version := data[len(magicNum)]; version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version: %d (expected %d)", ErrCorruptSnapshot, version, snapshotVersion)
	}
	body, sum := data[:len(data)-4], binary.LittleEndian.Uint32(data[len(data)-4:])
	if crc32.ChecksumIEEE(body) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptSnapshot)
	}

	dec := &snapshotReader{buf: body, off: len(magicNum) + 1}
	snap := &Snapshot{
		DumpTime:    dec.time(),
		ClientLocks: make(map[string][]*LockRecord),
		Addresses:   make(map[string]string),
	}

	// client -> locks; every lock id may only appear once
	owners := make(map[string]string)
	clients := dec.count(8)
	for i := 0; i < clients && dec.err == nil; i++ {
		clientID := dec.str()
		n := dec.count(22)
		records := make([]*LockRecord, 0, n)
		for j := 0; j < n && dec.err == nil; j++ {
			rec := dec.record()
			if dec.err != nil {
				break
			}
			if _, dup := owners[rec.ID]; dup {
				dec.fail("lock %q is held by more than one client", rec.ID)
				break
			}
			owners[rec.ID] = clientID
			records = append(records, rec)
		}
		if _, dup := snap.ClientLocks[clientID]; dup {
			dec.fail("client %q appears twice", clientID)
		}
		snap.ClientLocks[clientID] = records
	}

	// lock -> client must match the records exactly
	n := dec.count(8)
	if dec.err == nil && n != len(owners) {
		dec.fail("owner table has %d entries, expected %d", n, len(owners))
	}
	for i := 0; i < n && dec.err == nil; i++ {
		lockID, clientID := dec.str(), dec.str()
		if dec.err == nil && owners[lockID] != clientID {
			dec.fail("owner of lock %q is %q, expected %q", lockID, clientID, owners[lockID])
		}
	}

	// client -> address
	n = dec.count(8)
	for i := 0; i < n && dec.err == nil; i++ {
		clientID, address := dec.str(), dec.str()
		snap.Addresses[clientID] = address
	}

	if dec.err == nil && dec.off != len(dec.buf) {
		dec.fail("%d trailing bytes", len(dec.buf)-dec.off)
	}
	if dec.err != nil {
		return nil, dec.err
	}
	return snap, nil
}

// snapshotReader reads primitive values from a byte slice and remembers the first error.
// After an error all reads return zero values.
type snapshotReader struct {
	buf []byte
	off int
	err error
}

func (d *snapshotReader) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s", ErrCorruptSnapshot, fmt.Sprintf(format, args...))
	}
}

func (d *snapshotReader) next(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.buf)-d.off < n {
		d.fail("unexpected end of data at offset %d", d.off)
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *snapshotReader) u8() uint8 {
	if b := d.next(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *snapshotReader) u32() uint32 {
	if b := d.next(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *snapshotReader) i64() int64 {
	if b := d.next(8); b != nil {
		return int64(binary.LittleEndian.Uint64(b))
	}
	return 0
}

func (d *snapshotReader) time() time.Time {
	return time.Unix(0, d.i64())
}

func (d *snapshotReader) str() string {
	n := d.u32()
	return string(d.next(int(n)))
}

func (d *snapshotReader) flag() bool {
	switch d.u8() {
	case 0:
		return false
	case 1:
		return true
	default:
		d.fail("invalid flag at offset %d", d.off-1)
		return false
	}
}

// count reads an element count and rejects counts that can not fit into the remaining
// data, given that every element takes at least minSize bytes
func (d *snapshotReader) count(minSize int) int {
	n := int(d.u32())
	if d.err == nil && n > (len(d.buf)-d.off)/minSize {
		d.fail("count %d exceeds remaining data", n)
		return 0
	}
	return n
}

func (d *snapshotReader) record() *LockRecord {
	r := &LockRecord{
		ID:         d.str(),
		AcquiredAt: d.time(),
	}

	hasDeadline := d.flag()
	deadline := d.time()
	if hasDeadline {
		r.ReleaseDeadline = deadline
	}

	if d.flag() {
		n := d.count(4)
		r.Signals = make(map[string]struct{}, n)
		for i := 0; i < n && d.err == nil; i++ {
			r.Signals[d.str()] = struct{}{}
		}
	}
	return r
}
