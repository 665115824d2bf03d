package stm

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"

	"github.com/cespare/xxhash"

	"github.com/zeebo/gostm/internal/risky"
	"github.com/zeebo/gostm/machine"
)

// A lock word is an unsigned integer the size of a pointer. The low bit is
// the owned bit. When it is set, the remaining bits point at the write set
// entry of the committing transaction that owns the stripe. When it is
// clear, the remaining bits hold the version at which the stripe was last
// published. Ownership is only ever taken with a compare and swap by the
// acquiring transaction, and only the acquirer stores the word back to the
// unowned state.
const (
	lockBits  = 1
	ownedMask = 1

	// lockUnit marks a stripe momentarily written by a unit store. Loads and
	// stores wait it out like any other owner, commit time acquisition
	// treats it as a conflict, and conflict tracking ignores it.
	lockUnit = ^uint64(0)
)

func lockOwned(l uint64) bool     { return l&ownedMask != 0 }
func lockAddr(l uint64) uintptr   { return uintptr(l &^ uint64(ownedMask)) }
func lockVersion(l uint64) uint64 { return l >> lockBits }
func versionWord(v uint64) uint64 { return v << lockBits }

// ownedWord packs a pointer to the acquiring write set entry. Entries are
// word aligned so the owned bit is always free.
func ownedWord(w *wEntry) uint64 {
	return uint64(uintptr(unsafe.Pointer(w))) | ownedMask
}

// lockTable maps stripe addresses to lock words.
type lockTable struct {
	locks []uint64
	mask  uint64
	shift uint
	hash  bool
}

func newLockTable(bits, shiftExtra uint, hash bool) *lockTable {
	return &lockTable{
		locks: make([]uint64, 1<<bits),
		mask:  1<<bits - 1,
		shift: machine.WordShift + shiftExtra,
		hash:  hash,
	}
}

// get returns the lock word covering the stripe addr belongs to. Distinct
// addresses may share a lock word; that produces false conflicts but never
// unsafety.
func (t *lockTable) get(addr *uint64) *uint64 {
	a := uint64(uintptr(unsafe.Pointer(addr)))
	var idx uint64
	if t.hash {
		// scatter the stripes so that adjacent regions do not contend on
		// neighboring cache lines of the table
		var buf [machine.WordSize]byte
		binary.LittleEndian.PutUint64(buf[:], a>>t.shift)
		idx = xxhash.Sum64(buf[:]) & t.mask
	} else {
		idx = (a >> t.shift) & t.mask
	}
	return risky.Word(unsafe.Pointer(&t.locks), uintptr(idx))
}

// reset zero fills every lock word. Only called during a rollover while
// every transaction is quiesced.
func (t *lockTable) reset() {
	for i := range t.locks {
		atomic.StoreUint64(&t.locks[i], 0)
	}
}
