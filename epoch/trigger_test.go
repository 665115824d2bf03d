package epoch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrigger(t *testing.T) {
	t.Run("Basic", func(t *testing.T) {
		tr := newTrigger()

		ran := false
		require.True(t, tr.Free())
		require.True(t, tr.Store(8, func() { ran = true }))
		require.Equal(t, uint64(8), tr.Epoch())

		require.False(t, tr.Run(7))
		require.False(t, ran)
		require.False(t, tr.Free())

		require.True(t, tr.Run(8))
		require.True(t, ran)
		require.True(t, tr.Free())
	})

	t.Run("Swap", func(t *testing.T) {
		tr := newTrigger()

		ran1 := false
		require.True(t, tr.Store(8, func() { ran1 = true }))
		require.Equal(t, uint64(8), tr.Epoch())

		ran2 := false
		require.True(t, tr.Swap(8, 9, func() { ran2 = true }))
		require.True(t, ran1)
		require.Equal(t, uint64(9), tr.Epoch())

		require.True(t, tr.Run(9))
		require.True(t, ran2)
	})

	t.Run("Force", func(t *testing.T) {
		tr := newTrigger()

		require.False(t, tr.Force())

		ran := false
		require.True(t, tr.Store(8, func() { ran = true }))
		require.True(t, tr.Force())
		require.True(t, ran)
		require.True(t, tr.Free())
	})
}
