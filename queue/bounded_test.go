package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoundedNewInvalidOrder(t *testing.T) {
	_, err := NewBounded[int](0)
	require.ErrorIs(t, err, ErrInvalidOrder)
	_, err = NewBounded[int](21)
	require.ErrorIs(t, err, ErrInvalidOrder)
}

func TestBoundedPushPopFIFOOrder(t *testing.T) {
	q, err := NewBounded[int](3)
	require.NoError(t, err)

	for i := 1; i <= 7; i++ {
		require.True(t, q.Push(i))
	}
	require.False(t, q.Push(8), "pool has 8 nodes, one pinned as sentinel")

	for i := 1; i <= 7; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	_, ok := q.Pop()
	require.False(t, ok)
}

// TestBoundedConcurrentStress checks the xor-checksum conservation
// property: pushed values must equal popped values under the xor
// operator, for concurrent producers and consumers on a single bounded
// queue.
func TestBoundedConcurrentStress(t *testing.T) {
	q, err := NewBounded[uint64](10)
	require.NoError(t, err)

	const (
		producers   = 4
		perProducer = 2000
	)

	var mu sync.Mutex
	var pushedXor, poppedXor uint64

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			var localXor uint64
			for i := 0; i < perProducer; i++ {
				v := uint64(p)<<32 | uint64(i)
				for !q.Push(v) {
					// spin: queue momentarily full
				}
				localXor ^= v
			}
			mu.Lock()
			pushedXor ^= localXor
			mu.Unlock()
		}(p)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		var localXor uint64
		popped := 0
		for popped < producers*perProducer {
			if v, ok := q.Pop(); ok {
				localXor ^= v
				popped++
			}
		}
		mu.Lock()
		poppedXor ^= localXor
		mu.Unlock()
	}()

	wg.Wait()
	<-done

	require.Equal(t, pushedXor, poppedXor)
	require.Equal(t, int64(0), q.Len())
}
