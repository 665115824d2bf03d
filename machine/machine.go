package machine

const (
	CacheLine = 64

	// WordSize is the size in bytes of an stm word. The lock word encoding
	// steals the low bit of a pointer, so words must be pointer sized.
	WordSize  = 8
	WordShift = 3

	// MaxThreads bounds the number of live descriptors. It also provides
	// the slack below the maximum version so that concurrent committers
	// can overshoot the rollover threshold without wrapping.
	MaxThreads = 8192
)

type ( // ensure WordSize matches the platform pointer width
	_ [WordSize - 8]byte
	_ [8 - WordSize]byte
)

type (
	Pad64 [64]uint8
	Pad56 [56]uint8
	Pad48 [48]uint8
	Pad40 [40]uint8
	Pad32 [32]uint8
	Pad24 [24]uint8
	Pad16 [16]uint8
	Pad8  [8]uint8
)
