package stm

import (
	"sync/atomic"

	"github.com/zeebo/gostm/machine"
)

// gclock is the global version clock. It is monotonic between rollovers:
// every commit that publishes writes advances it by one. Padded so the hot
// word does not share a cache line with anything else.
type gclock struct {
	_   machine.Pad56
	now uint64
	_   machine.Pad56
}

func (c *gclock) get() uint64 {
	return atomic.LoadUint64(&c.now)
}

// fetchInc advances the clock and returns the incremented value.
func (c *gclock) fetchInc() uint64 {
	return atomic.AddUint64(&c.now, 1)
}

// reset is only called during a rollover while every transaction is
// quiesced.
func (c *gclock) reset() {
	atomic.StoreUint64(&c.now, 0)
}
