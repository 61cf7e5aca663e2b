package stack

import "testing"

// Run: go test -bench=. -benchmem -count=5 -run=^$ ./stack/

// BenchmarkPushPop measures an uncontended push/pop pair.
// Expected: 0 allocs/op, every node recycled through the freelist.
func BenchmarkPushPop(b *testing.B) {
	s, err := New[uint64](10)
	if err != nil {
		b.Fatalf("New failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		s.Push(uint64(i))
		s.Pop()
	}
}

// BenchmarkPushPop_Parallel measures push/pop pairs with every worker
// hammering the same worklist and freelist heads.
func BenchmarkPushPop_Parallel(b *testing.B) {
	s, err := New[uint64](12)
	if err != nil {
		b.Fatalf("New failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		var i uint64
		for pb.Next() {
			i++
			for !s.Push(i) {
			}
			for {
				if _, ok := s.Pop(); ok {
					break
				}
			}
		}
	})
}
