package spsc

import "testing"

// Run: go test -bench=. -benchmem -count=5 -run=^$ ./spsc/

// BenchmarkPushPop measures the no-CAS fast path: one goroutine acting
// as both the producer and the consumer.
func BenchmarkPushPop(b *testing.B) {
	r, err := New[uint64](10)
	if err != nil {
		b.Fatalf("New failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		r.Push(uint64(i))
		r.Pop()
	}
}
