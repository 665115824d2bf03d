package epoch

import (
	"unsafe"

	"github.com/zeebo/gostm/machine"
)

type entry struct {
	local uint64
	_     [56]uint8
}

type ( // ensure entries are exactly the size of a cache line
	_ [unsafe.Sizeof(entry{}) - machine.CacheLine]byte
	_ [machine.CacheLine - unsafe.Sizeof(entry{})]byte
)
