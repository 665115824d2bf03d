package stm

import (
	"encoding/binary"
	"unsafe"

	"github.com/spaolacci/murmur3"

	"github.com/zeebo/gostm/machine"
)

// wEntry buffers one speculative store. value and mask encode partial word
// stores: the published word is (current &^ mask) | (value & mask). noDrop
// marks entries whose lock is released by another entry covering the same
// stripe. version is the version captured from the lock at acquisition,
// restored on rollback.
type wEntry struct {
	addr    *uint64
	value   uint64
	mask    uint64
	version uint64
	lock    *uint64
	owner   *Tx
	noDrop  bool
	_       [7]uint8
	_       machine.Pad8
}

type ( // keep write entries exactly one cache line
	_ [unsafe.Sizeof(wEntry{}) - machine.CacheLine]byte
	_ [machine.CacheLine - unsafe.Sizeof(wEntry{})]byte
)

// wSet is the per descriptor write set.
type wSet struct {
	entries  []wEntry
	acquired int
	filter   filter
}

func (w *wSet) reset() {
	w.entries = w.entries[:0]
	w.acquired = 0
	w.filter = 0
}

// find locates the entry buffering addr, if any. The filter is a negative
// oracle only: a filter miss proves the address was never buffered.
func (w *wSet) find(addr *uint64, useFilter bool) *wEntry {
	if useFilter {
		bits := filterBits(addr)
		if !w.filter.may(bits) {
			return nil
		}
	}
	for i := range w.entries {
		if w.entries[i].addr == addr {
			return &w.entries[i]
		}
	}
	return nil
}

// owns reports whether p points into the write set's backing array. This
// recognizes the descriptor's own lock acquisitions without dereferencing
// foreign memory.
func (w *wSet) owns(p uintptr) bool {
	if len(w.entries) == 0 {
		return false
	}
	first := uintptr(unsafe.Pointer(&w.entries[0]))
	return first <= p && p < first+uintptr(len(w.entries))*unsafe.Sizeof(wEntry{})
}

// appendWrite adds a fresh entry, doubling the backing array when full. The
// old array may still be referenced through lock words observed by stale
// validators, so it is retired instead of dropped.
func (tx *Tx) appendWrite(addr *uint64, value, mask uint64, lock *uint64, version uint64) *wEntry {
	ws := &tx.ws
	if len(ws.entries) == cap(ws.entries) {
		old := ws.entries
		next := make([]wEntry, len(old), 2*cap(old))
		copy(next, old)
		ws.entries = next
		tx.tm.rec.Retire(func() { _ = old })
	}
	ws.entries = append(ws.entries, wEntry{
		addr:    addr,
		value:   value,
		mask:    mask,
		version: version,
		lock:    lock,
		owner:   tx,
		noDrop:  true,
	})
	return &ws.entries[len(ws.entries)-1]
}

// filter is a word sized bloom filter over buffered addresses: the TL2
// degenerate hash widened to 64 bits, with a murmur hash as second probe.
type filter uint64

func filterBits(addr *uint64) filter {
	a := uint64(uintptr(unsafe.Pointer(addr)))
	var buf [machine.WordSize]byte
	binary.LittleEndian.PutUint64(buf[:], a)
	h1 := (a >> 2) ^ (a >> 5)
	h2 := murmur3.Sum64(buf[:])
	return 1<<(h1&63) | 1<<(h2&63)
}

func (f filter) may(bits filter) bool { return f&bits == bits }
func (f *filter) add(bits filter)     { *f |= bits }
