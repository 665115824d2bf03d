package epoch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReclaimer(t *testing.T) {
	t.Run("RetireWaitsForHandles", func(t *testing.T) {
		clock := uint64(10)
		r := New(func() uint64 { return clock }, 8)

		h := r.AcquireHandle()
		defer r.ReleaseHandle(h)
		r.Enter(h, 10)

		freed := false
		r.Retire(func() { freed = true })
		require.Equal(t, uint64(1), r.Pending())

		// the handle still observes epoch 10, so nothing may run
		r.Drain(clock)
		require.False(t, freed)

		// once the handle moves past the retire epoch the action runs
		clock = 12
		r.Enter(h, 12)
		r.Drain(clock)
		require.True(t, freed)
		require.Equal(t, uint64(0), r.Pending())
	})

	t.Run("IdleHandlesDoNotPin", func(t *testing.T) {
		clock := uint64(5)
		r := New(func() uint64 { return clock }, 8)

		h := r.AcquireHandle()
		r.Enter(h, 5)
		r.Leave(h)
		r.ReleaseHandle(h)

		freed := false
		r.Retire(func() { freed = true })
		clock = 7
		r.Drain(clock)
		require.True(t, freed)
	})

	t.Run("Reset", func(t *testing.T) {
		clock := uint64(5)
		r := New(func() uint64 { return clock }, 8)

		h := r.AcquireHandle()
		defer r.ReleaseHandle(h)
		r.Enter(h, 5)

		freed := 0
		r.Retire(func() { freed++ })
		r.Retire(func() { freed++ })
		require.Equal(t, uint64(2), r.Pending())

		r.Reset()
		require.Equal(t, 2, freed)
		require.Equal(t, uint64(0), r.Pending())
	})
}

func BenchmarkEpoch(b *testing.B) {
	b.Run("Enter+Leave", func(b *testing.B) {
		r := New(func() uint64 { return 1 }, 8)
		h := r.AcquireHandle()

		b.ReportAllocs()
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			r.Enter(h, 1)
			r.Leave(h)
		}
	})

	b.Run("Enter+Leave Parallel", func(b *testing.B) {
		r := New(func() uint64 { return 1 }, 64)

		b.ReportAllocs()
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			h := r.AcquireHandle()
			defer r.ReleaseHandle(h)
			for pb.Next() {
				r.Enter(h, 1)
				r.Leave(h)
			}
		})
	})
}
