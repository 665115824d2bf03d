package stm

import (
	"sync/atomic"

	"github.com/zeebo/gostm/internal/assert"
)

// Store buffers a full word store. The write reaches memory only when the
// transaction commits; the stripe lock is acquired at commit, not here.
func (tx *Tx) Store(addr *uint64, value uint64) {
	tx.write(addr, value, ^uint64(0))
}

// StoreMasked buffers a partial word store: only the bits set in mask are
// published. Partial stores to the same word compose.
func (tx *Tx) StoreMasked(addr *uint64, value, mask uint64) {
	tx.write(addr, value, mask)
}

func (tx *Tx) write(addr *uint64, value, mask uint64) *wEntry {
	assert.That("store inside an active transaction", func() bool {
		return tx.status == txActive
	})

	if tx.ro {
		// the retry runs in read write mode
		tx.attr.ReadOnly = false
		tx.rollback(ROWrite)
	}

	lock := tx.tm.locks.get(addr)
	attempts := 0

restart:
	l := atomic.LoadUint64(lock)
	if lockOwned(l) {
		attempts++
		if tx.tm.cm.OnConflict(tx, Conflict{Kind: ConflictStore, Lock: l, Attempts: attempts}) == AbortSelf {
			tx.tm.slowdown(tx, l)
			tx.rollback(Killed)
		}
		goto restart
	}

	if w := tx.ws.find(addr, tx.tm.useFilter); w != nil {
		w.value = w.value&^mask | value&mask
		w.mask |= mask
		return w
	}

	version := lockVersion(l)
	if version > tx.end {
		// the stripe moved past the snapshot. an older read of it cannot
		// be reconciled; otherwise try to catch the snapshot up.
		if !tx.canExtend || tx.rs.has(lock) != nil || !tx.extend() {
			tx.rollback(ValWrite)
		}
	}

	if mask == 0 {
		value = 0
	}
	w := tx.appendWrite(addr, value, mask, lock, version)
	tx.ws.filter.add(filterBits(addr))
	return w
}
