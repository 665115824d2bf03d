package stm

import (
	"sync/atomic"

	"github.com/zeebo/gostm/epoch"
	"github.com/zeebo/gostm/internal/assert"
)

type txStatus uint32

const (
	txIdle txStatus = iota
	txActive
	txCommitted
	txAborted
)

// Attr configures one top level transaction.
type Attr struct {
	// ReadOnly promises that the body performs no stores. Loads skip the
	// read set. A store rolls the transaction back with ROWrite and the
	// retry runs in read write mode.
	ReadOnly bool

	// NoRetry surfaces every rollback to the caller of Atomic instead of
	// retrying the body.
	NoRetry bool

	// VisibleReads is accepted for compatibility and ignored.
	VisibleReads bool

	// NoExtend is accepted for compatibility and ignored.
	NoExtend bool
}

// Tx is a per thread transaction descriptor: status, snapshot range, read
// and write sets, and the retry state. A descriptor is created once by
// InitThread, reused across many transactions, and must not be shared
// between goroutines.
type Tx struct {
	tm     *TM
	attr   Attr
	status txStatus

	// snapshot validity range [start, end]
	start uint64
	end   uint64

	rs rSet
	ws wSet

	ro        bool
	canExtend bool
	nesting   int
	retries   uint64
	reason    Reason

	specific [maxSpecific]interface{}
	handle   epoch.Handle
	next     *Tx

	stats txStats
}

// Atomic runs fn as a transaction. The body may be rolled back and run
// again any number of times, so it must be idempotent up to its
// transactional loads and stores. A nested Atomic on the same descriptor
// joins the enclosing transaction (flat nesting): an inner rollback rolls
// the whole top level transaction back.
//
// Atomic returns nil once the transaction commits. With Attr.NoRetry, or
// after an explicit Abort, it returns an *AbortError instead of retrying.
func (tx *Tx) Atomic(attr Attr, fn func()) error {
	if tx.nesting > 0 {
		// flat nesting: no fresh context, the inner commit only decrements
		tx.nesting++
		fn()
		tx.nesting--
		return nil
	}

	tx.attr = attr
	tx.nesting = 1
	tx.prepare()
	tx.tm.startCB.run(tx)

	for {
		retry, err := tx.run(fn)
		if !retry {
			return err
		}
	}
}

// run performs one attempt of the body, catching the rollback jump. This is
// the moral equivalent of sigsetjmp at the begin site.
func (tx *Tx) run(fn func()) (retry bool, err error) {
	defer func() {
		switch j := recover().(type) {
		case nil:
		case *txJump:
			if j.tx != tx {
				panic(j)
			}
			if j.retry {
				retry = true
			} else {
				err = &AbortError{Reason: j.reason}
			}
		default:
			// a foreign panic is escaping the body. no locks can be held
			// outside of commit, so only the descriptor needs fixing
			// before letting it unwind.
			tx.status = txAborted
			tx.nesting = 0
			panic(j)
		}
	}()

	fn()
	tx.commit()
	return false, nil
}

// prepare readies the descriptor for the next attempt: fresh snapshot,
// empty sets, ACTIVE status. Blocks on the rollover barrier when the clock
// has run out.
func (tx *Tx) prepare() {
	for {
		tx.start = tx.tm.clock.get()
		tx.end = tx.start
		if tx.start < tx.tm.versionMax {
			break
		}
		tx.tm.quiesceBarrier(tx, tx.tm.rollover)
	}
	tx.canExtend = true
	tx.ro = tx.attr.ReadOnly
	tx.rs.reset()
	tx.ws.reset()
	tx.tm.rec.Enter(tx.handle, tx.start)
	tx.status = txActive
}

// rollback releases any locks acquired during commit, accounts the abort,
// and unwinds back to the Atomic retry loop. It never returns normally.
func (tx *Tx) rollback(reason Reason) {
	assert.That("rollback of an active transaction", func() bool {
		return tx.status == txActive
	})

	// drop acquired locks, restoring the version each carried before
	// acquisition. entries marked noDrop share a lock with the entry that
	// actually acquired it.
	if tx.ws.acquired > 0 {
		for i := len(tx.ws.entries) - 1; i >= 0; i-- {
			w := &tx.ws.entries[i]
			if w.noDrop {
				continue
			}
			atomic.StoreUint64(w.lock, versionWord(w.version))
			if tx.ws.acquired--; tx.ws.acquired == 0 {
				break
			}
		}
	}

	tx.retries++
	tx.countAbort(reason)
	tx.tm.stats.aborts.Inc()
	tx.status = txAborted
	tx.nesting = 1
	tx.reason = reason
	tx.tm.abortCB.run(tx)

	if tx.attr.NoRetry || reason&Explicit != 0 {
		tx.nesting = 0
		panic(&txJump{tx: tx, reason: reason})
	}

	tx.prepare()
	panic(&txJump{tx: tx, reason: reason, retry: true})
}

// Abort rolls the current transaction back with the Explicit reason and
// returns control to the caller of Atomic with an *AbortError. It never
// returns normally.
func (tx *Tx) Abort() {
	assert.That("abort inside an active transaction", func() bool {
		return tx.status == txActive
	})
	tx.rollback(Explicit)
}

// SetExtension enables or disables snapshot extension, and optionally
// clamps the snapshot upper bound.
func (tx *Tx) SetExtension(enable bool, bound *uint64) {
	tx.canExtend = enable
	if bound != nil && *bound < tx.end {
		tx.end = *bound
	}
}

// Active reports whether the descriptor is inside a transaction.
func (tx *Tx) Active() bool { return tx.status == txActive }

// LastAbort returns the reason of the most recent rollback.
func (tx *Tx) LastAbort() Reason { return tx.reason }

// Aborted reports whether the last transaction rolled back.
func (tx *Tx) Aborted() bool { return tx.status == txAborted }

// SetSpecific stores per descriptor data under a key from CreateSpecific.
func (tx *Tx) SetSpecific(key int, v interface{}) {
	assert.That("specific key was created", func() bool {
		return key >= 0 && key < int(tx.tm.nbSpecific.Load())
	})
	tx.specific[key] = v
}

// Specific fetches per descriptor data stored by SetSpecific.
func (tx *Tx) Specific(key int) interface{} {
	assert.That("specific key was created", func() bool {
		return key >= 0 && key < int(tx.tm.nbSpecific.Load())
	})
	return tx.specific[key]
}
