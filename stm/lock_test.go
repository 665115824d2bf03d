package stm

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestLockWord(t *testing.T) {
	t.Run("Version", func(t *testing.T) {
		for _, v := range []uint64{0, 1, 42, 1 << 40, versionLimit(1)} {
			l := versionWord(v)
			require.False(t, lockOwned(l))
			require.Equal(t, v, lockVersion(l))
		}
	})

	t.Run("Owner", func(t *testing.T) {
		var w wEntry
		l := ownedWord(&w)
		require.True(t, lockOwned(l))
		require.Equal(t, uintptr(unsafe.Pointer(&w)), lockAddr(l))
	})

	t.Run("Unit", func(t *testing.T) {
		require.True(t, lockOwned(lockUnit))
	})
}

func TestLockTable(t *testing.T) {
	words := make([]uint64, 1024)

	t.Run("Deterministic", func(t *testing.T) {
		lt := newLockTable(10, 0, false)
		for i := range words {
			require.True(t, lt.get(&words[i]) == lt.get(&words[i]))
		}
	})

	t.Run("AdjacentWordsDistinct", func(t *testing.T) {
		// with no extra shift every word is its own stripe
		lt := newLockTable(10, 0, false)
		require.True(t, lt.get(&words[0]) != lt.get(&words[1]))
	})

	t.Run("ExtraShiftWidensStripes", func(t *testing.T) {
		// with two extra shift bits a stripe covers four words, so some
		// adjacent pair must land inside one stripe
		lt := newLockTable(10, 2, false)
		found := false
		for i := 0; i < 7; i++ {
			a := uintptr(unsafe.Pointer(&words[i]))
			b := uintptr(unsafe.Pointer(&words[i+1]))
			if a>>5 == b>>5 {
				require.True(t, lt.get(&words[i]) == lt.get(&words[i+1]))
				found = true
			}
		}
		require.True(t, found)
	})

	t.Run("HashIndex", func(t *testing.T) {
		lt := newLockTable(10, 0, true)
		distinct := false
		for i := range words {
			require.True(t, lt.get(&words[i]) == lt.get(&words[i]))
			if lt.get(&words[i]) != lt.get(&words[0]) {
				distinct = true
			}
		}
		require.True(t, distinct)
	})

	t.Run("Reset", func(t *testing.T) {
		lt := newLockTable(4, 0, false)
		for i := range lt.locks {
			lt.locks[i] = versionWord(uint64(i))
		}
		lt.reset()
		for i := range lt.locks {
			require.Zero(t, lt.locks[i])
		}
	})
}
