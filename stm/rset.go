package stm

// rEntry records one invisible read: the lock slot the read went through
// and the version it observed.
type rEntry struct {
	version uint64
	lock    *uint64
}

// rSet is the per descriptor read set, appended to in order of first read
// of each stripe. Duplicates are permitted.
type rSet struct {
	entries []rEntry
}

func (r *rSet) reset() {
	r.entries = r.entries[:0]
}

// has returns the first entry for the lock slot, if any.
func (r *rSet) has(lock *uint64) *rEntry {
	for i := range r.entries {
		if r.entries[i].lock == lock {
			return &r.entries[i]
		}
	}
	return nil
}

// recordRead appends to the read set, doubling the backing array when full.
// The old array is handed to the reclaimer rather than dropped. Lock words
// only ever point at write set entries, never at read set entries.
func (tx *Tx) recordRead(lock *uint64, version uint64) {
	rs := &tx.rs
	if len(rs.entries) == cap(rs.entries) {
		old := rs.entries
		next := make([]rEntry, len(old), 2*cap(old))
		copy(next, old)
		rs.entries = next
		tx.tm.rec.Retire(func() { _ = old })
	}
	rs.entries = append(rs.entries, rEntry{version: version, lock: lock})
}
