package slab

import "testing"

// Run: go test -bench=. -benchmem -count=5 -run=^$ ./slab/

// BenchmarkArenaAllocFree measures the steady-state recycle path: after
// the first page every Alloc is a freelist pop.
// Expected: 0 allocs/op.
func BenchmarkArenaAllocFree(b *testing.B) {
	a := NewArena[uint64]()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		idx, val := a.Alloc()
		*val = uint64(i)
		a.Free(idx)
	}
}

func BenchmarkArenaAllocFree_Parallel(b *testing.B) {
	a := NewArena[uint64]()

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		var i uint64
		for pb.Next() {
			i++
			idx, val := a.Alloc()
			*val = i
			a.Free(idx)
		}
	})
}

func BenchmarkFacadeMallocFree(b *testing.B) {
	f := NewFacade()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		buf, err := f.Malloc(128)
		if err != nil {
			b.Fatalf("Malloc failed: %v", err)
		}
		buf[0] = byte(i)
		f.Free(buf)
	}
}

func BenchmarkFacadeMallocFree_Parallel(b *testing.B) {
	f := NewFacade()

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf, err := f.Malloc(128)
			if err != nil {
				b.Error(err)
				return
			}
			buf[0] = 1
			f.Free(buf)
		}
	})
}
