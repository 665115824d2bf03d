// package risky provides unsafe helpers.
package risky

import (
	"unsafe"

	"github.com/zeebo/gostm/machine"
)

// Word returns the address of the word in the slice at the slot, skipping
// the bounds check. The slot must be in range.
func Word(slice unsafe.Pointer, slot uintptr) *uint64 {
	// relies on the data pointer being first in a slice
	data := *(*unsafe.Pointer)(slice)
	ptr := unsafe.Pointer(uintptr(data) + machine.WordSize*slot)
	return (*uint64)(ptr)
}
