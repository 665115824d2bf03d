// Package epoch implements epoch based reclamation for memory that is
// published through packed words and may be observed by concurrent readers
// after it has been logically retired.
//
// Epochs are timestamps taken from an external clock (for the stm package,
// the global version clock). Every handle records the epoch of the snapshot
// it is working under; a retired action runs only once every live handle has
// moved past the epoch it was retired at.
package epoch

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

const (
	drainEntries = 256
)

// Reclaimer defers releases of retired memory until no handle can still
// observe it.
type Reclaimer struct {
	clock func() uint64

	// keep track of which epoch is safe
	safe uint64
	_    [56]uint8

	// keep track of pending triggers
	trigger_count uint64
	_             [56]uint8

	entries  []entry
	triggers [drainEntries]Trigger

	// handle allocation
	next uint32
	used []uint32
}

// New constructs a Reclaimer that tags retired actions with the given clock.
// At most maxHandles handles can be live at once.
func New(clock func() uint64, maxHandles int) *Reclaimer {
	r := &Reclaimer{
		clock:   clock,
		entries: make([]entry, maxHandles),
		used:    make([]uint32, maxHandles),
	}
	for i := range r.triggers {
		r.triggers[i].epoch = triggerFree
	}
	return r
}

func (r *Reclaimer) getEntry(h Handle) *entry {
	return &r.entries[h.id%uint32(len(r.entries))]
}

// Enter records that the handle is working under a snapshot taken at the
// given epoch. Calls involving the same Handle must not happen concurrently.
func (r *Reclaimer) Enter(h Handle, epoch uint64) {
	// the local value is biased by one so that zero means idle even when
	// the clock itself is at zero.
	atomic.StoreUint64(&r.getEntry(h).local, epoch+1)
}

// Leave records that the handle no longer observes any snapshot.
func (r *Reclaimer) Leave(h Handle) {
	atomic.StoreUint64(&r.getEntry(h).local, 0)
}

// ComputeSafe finds the current safe epoch across all the entries, using the
// provided epoch as an initial value.
func (r *Reclaimer) ComputeSafe(epoch uint64) uint64 {
	oldest := epoch
	for i := range r.entries {
		local := atomic.LoadUint64(&r.entries[i].local)
		if local != 0 && local-1 < oldest {
			oldest = local - 1
		}
	}
	safe := uint64(0)
	if oldest > 0 {
		safe = oldest - 1
	}
	atomic.StoreUint64(&r.safe, safe)
	return safe
}

// Drain runs any triggers that are safe to run. The provided epoch is used as
// an initial epoch for computing which epoch is safe.
func (r *Reclaimer) Drain(epoch uint64) {
	r.ComputeSafe(epoch)

	for i := range &r.triggers {
		trigger := &r.triggers[i]
		epoch := trigger.Epoch()
		safe := atomic.LoadUint64(&r.safe)

		if epoch <= safe &&
			trigger.Run(epoch) &&
			atomic.AddUint64(&r.trigger_count, ^uint64(0)) == 0 {

			break
		}
	}
}

// Retire queues the action to run once every live handle has moved past the
// current clock value. It may run older actions inline to make room.
func (r *Reclaimer) Retire(action func()) {
	tag := r.clock()
	failures := 0

finished:
	for {
		for i := range &r.triggers {
			trigger := &r.triggers[i]
			epoch := trigger.Epoch()

			if epoch == triggerFree && trigger.Store(tag, action) {
				break finished
			}

			safe := atomic.LoadUint64(&r.safe)
			if epoch <= safe && trigger.Swap(epoch, tag, action) {
				// the swap ran the old action, so the count is unchanged
				return
			}
		}

		r.Drain(r.clock())

		failures++
		if failures == 500 {
			failures = 0
			fmt.Fprintln(os.Stderr, "Slowdown: unable to add trigger to epoch")
			time.Sleep(time.Second)
		}
	}

	atomic.AddUint64(&r.trigger_count, 1)
}

// Pending returns the number of queued triggers.
func (r *Reclaimer) Pending() uint64 {
	return atomic.LoadUint64(&r.trigger_count)
}

// Reset forcibly runs every queued trigger and clears all local epochs. It
// must only be called while every handle is quiescent, such as during a
// clock rollover.
func (r *Reclaimer) Reset() {
	for i := range &r.triggers {
		if r.triggers[i].Force() {
			atomic.AddUint64(&r.trigger_count, ^uint64(0))
		}
	}
	for i := range r.entries {
		atomic.StoreUint64(&r.entries[i].local, 0)
	}
	atomic.StoreUint64(&r.safe, 0)
}
