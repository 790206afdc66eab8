package lockmgr

import (
	"time"
)

// --------------------------------------------------------------------------
// Client Locks (ordered bucket of a single client)
// --------------------------------------------------------------------------

// clientLocks holds the records of one client in insertion order
type clientLocks struct {
	records []*LockRecord
}

// add appends the record to the bucket
func (c *clientLocks) add(r *LockRecord) {
	c.records = append(c.records, r)
}

// remove deletes the record with the given id and keeps the order of the remaining records
func (c *clientLocks) remove(lockID string) bool {
	for i, r := range c.records {
		if r.ID == lockID {
			copy(c.records[i:], c.records[i+1:])
			c.records[len(c.records)-1] = nil // help the go gc
			c.records = c.records[:len(c.records)-1]
			return true
		}
	}
	return false
}

// len returns the number of records in the bucket
func (c *clientLocks) len() int {
	return len(c.records)
}

// --------------------------------------------------------------------------
// Client Index
// --------------------------------------------------------------------------

// clientIndex is the bidirectional mapping between locks and clients.
// A lock id is contained in owners iff it is contained in records iff a record
// with that id is in the bucket of its owner.
//
// Thread-safety: The index is not thread-safe. The storage protects it with a single mutex.
type clientIndex struct {
	owners    map[string]string       // lock id -> client id
	clients   map[string]*clientLocks // client id -> ordered records of the client
	records   map[string]*LockRecord  // lock id -> record
	addresses map[string]string       // client id -> last known address
}

// newClientIndex creates an empty index
func newClientIndex() *clientIndex {
	return &clientIndex{
		owners:    make(map[string]string),
		clients:   make(map[string]*clientLocks),
		records:   make(map[string]*LockRecord),
		addresses: make(map[string]string),
	}
}

// lookup returns the record and the owner of a lock
func (idx *clientIndex) lookup(lockID string) (*LockRecord, string, bool) {
	r, ok := idx.records[lockID]
	if !ok {
		return nil, "", false
	}
	return r, idx.owners[lockID], true
}

// insert adds a record for the client. The caller must make sure the lock id is not yet tracked.
func (idx *clientIndex) insert(clientID string, r *LockRecord) {
	bucket, ok := idx.clients[clientID]
	if !ok {
		bucket = &clientLocks{}
		idx.clients[clientID] = bucket
	}
	bucket.add(r)
	idx.owners[r.ID] = clientID
	idx.records[r.ID] = r
}

// remove deletes the lock from all structures.
// A client bucket without records is removed as well.
func (idx *clientIndex) remove(lockID string) bool {
	clientID, ok := idx.owners[lockID]
	if !ok {
		return false
	}
	delete(idx.owners, lockID)
	delete(idx.records, lockID)

	if bucket, ok := idx.clients[clientID]; ok {
		bucket.remove(lockID)
		if bucket.len() == 0 {
			delete(idx.clients, clientID)
		}
	}
	return true
}

// purgeIfExpired removes the lock if its release deadline has passed.
// It returns the record if it is still valid, expired reports whether a record was removed.
func (idx *clientIndex) purgeIfExpired(lockID string, now time.Time) (r *LockRecord, owner string, ok bool, expired bool) {
	r, owner, ok = idx.lookup(lockID)
	if !ok {
		return nil, "", false, false
	}
	if r.Expired(now) {
		idx.remove(lockID)
		return nil, "", false, true
	}
	return r, owner, true, false
}

// purgeClient removes all expired records of a client and returns how many were removed.
func (idx *clientIndex) purgeClient(clientID string, now time.Time) int {
	bucket, ok := idx.clients[clientID]
	if !ok {
		return 0
	}

	kept := bucket.records[:0]
	purged := 0
	for _, r := range bucket.records {
		if r.Expired(now) {
			delete(idx.owners, r.ID)
			delete(idx.records, r.ID)
			purged++
			continue
		}
		kept = append(kept, r)
	}

	// help the go gc with the tail of the reused slice
	for i := len(kept); i < len(bucket.records); i++ {
		bucket.records[i] = nil
	}
	bucket.records = kept

	if bucket.len() == 0 {
		delete(idx.clients, clientID)
	}
	return purged
}

// locksOf returns the records of a client (not a copy!)
func (idx *clientIndex) locksOf(clientID string) []*LockRecord {
	if bucket, ok := idx.clients[clientID]; ok {
		return bucket.records
	}
	return nil
}
