package stm

import (
	"sync/atomic"
	"unsafe"

	"github.com/zeebo/gostm/internal/assert"
)

// commit runs at nesting depth one and attempts to publish the write set.
// On failure it does not return normally: the rollback unwinds to the
// Atomic retry loop.
func (tx *Tx) commit() {
	tx.nesting--
	if tx.nesting > 0 {
		return
	}

	tx.tm.precommitCB.run(tx)

	assert.That("commit of an active transaction", func() bool {
		return tx.status == txActive
	})

	// a transaction with no writes commits without touching the clock
	if len(tx.ws.entries) != 0 {
		tx.publish()
	}

	tx.stats.commits++
	tx.retries = 0
	tx.status = txCommitted
	tx.tm.stats.commits.Inc()
	tx.tm.commitCB.run(tx)
}

func (tx *Tx) publish() {
	entries := tx.ws.entries

	// acquire the locks in reverse write order. the deterministic partial
	// order combined with suicide on conflict cannot deadlock.
	for i := len(entries) - 1; i >= 0; i-- {
		w := &entries[i]
		attempts := 0

	restart:
		l := atomic.LoadUint64(w.lock)
		if lockOwned(l) {
			if tx.ws.owns(lockAddr(l)) {
				// an earlier entry covers the same stripe; its release
				// covers this entry too
				continue
			}
			attempts++
			if tx.tm.cm.OnConflict(tx, Conflict{Kind: ConflictCommit, Lock: l, Attempts: attempts}) == AbortSelf {
				tx.tm.conflict(tx, l)
				tx.rollback(WWConflict)
			}
			goto restart
		}
		if !atomic.CompareAndSwapUint64(w.lock, l, ownedWord(w)) {
			goto restart
		}
		w.noDrop = false
		w.version = lockVersion(l)
		tx.ws.acquired++
	}

	// the commit timestamp. may overshoot the rollover threshold by up to
	// the number of threads; the slack in versionLimit absorbs that.
	t := tx.tm.clock.fetchInc()

	// if any other transaction committed since this snapshot began, the
	// reads must still hold under the locks taken above
	if tx.start != t-1 && !tx.validate() {
		tx.rollback(Validate)
	}

	// install the new values, then release each acquired lock with the
	// commit timestamp
	for i := range entries {
		w := &entries[i]
		if w.mask == ^uint64(0) {
			atomic.StoreUint64(w.addr, w.value)
		} else if w.mask != 0 {
			atomic.StoreUint64(w.addr, atomic.LoadUint64(w.addr)&^w.mask|w.value&w.mask)
		}
		if !w.noDrop {
			atomic.StoreUint64(w.lock, versionWord(t))
		}
	}
}

// validate checks every read set entry against the current lock words.
func (tx *Tx) validate() bool {
	for i := range tx.rs.entries {
		r := &tx.rs.entries[i]
		l := atomic.LoadUint64(r.lock)
		if lockOwned(l) {
			p := lockAddr(l)
			if !tx.ws.owns(p) {
				// owned by another transaction
				tx.tm.conflict(tx, l)
				return false
			}
			// owned by this commit: the version captured at acquisition
			// must match what the read observed
			if w := (*wEntry)(unsafe.Pointer(p)); w.version != r.version {
				return false
			}
		} else if lockVersion(l) != r.version {
			return false
		}
	}
	return true
}

// extend tries to advance the snapshot upper bound to the current clock,
// revalidating every read against it. A long running reader survives
// concurrent committers as long as its own read set stays consistent.
func (tx *Tx) extend() bool {
	now := tx.tm.clock.get()
	if now >= tx.tm.versionMax {
		// out of versions; the next begin hits the rollover barrier
		return false
	}
	if tx.validate() {
		tx.end = now
		return true
	}
	return false
}
