package stm

import (
	"sync/atomic"

	"github.com/zeebo/gostm/internal/assert"
)

// Load performs a speculative, invisible read of a word. Must run inside
// Atomic; on an irrecoverable snapshot miss it unwinds to the retry loop.
//
// The lock, value, lock idiom below guarantees that the returned value is
// consistent with the captured version: no writer can publish a new value
// between the two lock reads without changing the lock word.
func (tx *Tx) Load(addr *uint64) uint64 {
	assert.That("load inside an active transaction", func() bool {
		return tx.status == txActive
	})

	// a full word already in the write set short circuits; a partial one
	// overlays the memory word below, after the version check
	written := tx.ws.find(addr, tx.tm.useFilter)
	if written != nil && written.mask == ^uint64(0) {
		return written.value
	}

	lock := tx.tm.locks.get(addr)
	attempts := 0

	var l, l2, value uint64

restart:
	l = atomic.LoadUint64(lock)
restartNoLoad:
	if lockOwned(l) {
		// owned by some committer, or a momentary unit store. both release
		// quickly, so wait unless the policy gives up.
		attempts++
		if tx.tm.cm.OnConflict(tx, Conflict{Kind: ConflictLoad, Lock: l, Attempts: attempts}) == AbortSelf {
			tx.tm.slowdown(tx, l)
			tx.rollback(Killed)
		}
		goto restart
	}

	value = atomic.LoadUint64(addr)
	l2 = atomic.LoadUint64(lock)
	if l != l2 {
		l = l2
		goto restartNoLoad
	}

	if version := lockVersion(l); version > tx.end {
		// the stripe moved past the snapshot. read only transactions carry
		// no read set, so they cannot extend over it.
		if tx.ro || !tx.canExtend || !tx.extend() {
			tx.rollback(ValRead)
		}
		// the version read above was not yet in the read set while
		// extending; confirm the lock did not flip underneath
		if l = atomic.LoadUint64(lock); l != l2 {
			goto restartNoLoad
		}
	}

	if written != nil {
		value = value&^written.mask | written.value&written.mask
	}
	if !tx.ro {
		tx.recordRead(lock, lockVersion(l))
	}
	return value
}
