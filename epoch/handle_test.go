package epoch

import (
	"testing"
)

func BenchmarkHandle(b *testing.B) {
	b.ReportAllocs()

	r := New(func() uint64 { return 1 }, 64)

	b.Run("Acquire+Release", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			h := r.AcquireHandle()
			r.ReleaseHandle(h)
		}
	})

	b.Run("Acquire+Release Parallel", func(b *testing.B) {
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				h := r.AcquireHandle()
				r.ReleaseHandle(h)
			}
		})
	})
}
