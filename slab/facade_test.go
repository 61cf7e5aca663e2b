package slab

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassSizesCounts(t *testing.T) {
	require.Len(t, classSizes, classCountSmall+classCountMedium+classCountLarge)
	require.Equal(t, 16, classSizes[0])
	require.Equal(t, 496, classSizes[classCountSmall-1])
	require.Equal(t, 512, classSizes[classCountSmall])
	require.Equal(t, 15872, classSizes[classCountSmall+classCountMedium-1])
	require.Equal(t, 16384, classSizes[classCountSmall+classCountMedium])
	require.Equal(t, 524288, classSizes[len(classSizes)-1])
	require.Equal(t, 524288, MaxClassSize)
}

func TestClassFor(t *testing.T) {
	idx, ok := classFor(1)
	require.True(t, ok)
	require.Equal(t, 16, classSizes[idx])

	idx, ok = classFor(497)
	require.True(t, ok)
	require.Equal(t, 512, classSizes[idx])

	_, ok = classFor(MaxClassSize + 1)
	require.False(t, ok)
}

func TestFacadeMallocFreeRoundTrip(t *testing.T) {
	f := NewFacade()

	buf, err := f.Malloc(100)
	require.NoError(t, err)
	require.Len(t, buf, 100)
	for i := range buf {
		buf[i] = byte(i)
	}
	f.Free(buf)
}

func TestFacadeCallocZeroes(t *testing.T) {
	f := NewFacade()

	buf, err := f.Malloc(64)
	require.NoError(t, err)
	for i := range buf {
		buf[i] = 0xFF
	}
	f.Free(buf)

	buf, err = f.Calloc(64)
	require.NoError(t, err)
	for _, b := range buf {
		require.Equal(t, byte(0), b)
	}
	f.Free(buf)
}

func TestFacadeReallocGrowPreservesPrefix(t *testing.T) {
	f := NewFacade()

	buf, err := f.Malloc(10)
	require.NoError(t, err)
	for i := range buf {
		buf[i] = byte('a' + i)
	}

	buf, err = f.Realloc(buf, 1000)
	require.NoError(t, err)
	require.Len(t, buf, 1000)
	for i := 0; i < 10; i++ {
		require.Equal(t, byte('a'+i), buf[i])
	}
	f.Free(buf)
}

func TestFacadeReallocShrinkInPlaceSameClass(t *testing.T) {
	f := NewFacade()

	buf, err := f.Malloc(400)
	require.NoError(t, err)
	require.Len(t, buf, 400)

	buf, err = f.Realloc(buf, 50)
	require.NoError(t, err)
	require.Len(t, buf, 50)
	f.Free(buf)
}

func TestFacadeMallocAccReturnsClassCapacity(t *testing.T) {
	f := NewFacade()

	buf, err := f.MallocAcc(100)
	require.NoError(t, err)
	classIdx, ok := classFor(100 + headerSize)
	require.True(t, ok)
	require.Equal(t, classSizes[classIdx]-headerSize, len(buf),
		"granted length must be the class's full payload capacity")
	require.GreaterOrEqual(t, len(buf), 100)
	for i := range buf {
		buf[i] = byte(i)
	}
	f.Free(buf)
}

func TestFacadeReallocGrowsGeometrically(t *testing.T) {
	f := NewFacade()

	buf, err := f.Malloc(10)
	require.NoError(t, err)
	copy(buf, "0123456789")

	buf, err = f.Realloc(buf, 100)
	require.NoError(t, err)
	require.Len(t, buf, 100)
	require.Equal(t, "0123456789", string(buf[:10]))

	// The grown block was sized for 4x the request, so pushing the
	// length further within that capacity must not move the data.
	h, _ := headerBefore(buf)
	require.GreaterOrEqual(t, int(h.cap), 400)
	base := &buf[0]
	buf, err = f.Realloc(buf, 300)
	require.NoError(t, err)
	require.Len(t, buf, 300)
	require.Same(t, base, &buf[0], "growth within capacity should resize in place")
	f.Free(buf)
}

// TestFacadeRecyclingNoGrowth: allocate 10,000 blocks of 96 bytes,
// free them all, allocate 10,000 more; the owning class must not have
// acquired any OS pages beyond the first round's.
func TestFacadeRecyclingNoGrowth(t *testing.T) {
	f := NewFacade()

	const n = 10_000
	bufs := make([][]byte, n)
	for i := range bufs {
		buf, err := f.Malloc(96)
		require.NoError(t, err)
		bufs[i] = buf
	}

	classIdx, ok := classFor(96 + headerSize)
	require.True(t, ok)
	pagesAfterFirstRound := len(*f.pools[classIdx].blocks.Load())

	for _, buf := range bufs {
		f.Free(buf)
	}
	for i := range bufs {
		buf, err := f.Malloc(96)
		require.NoError(t, err)
		bufs[i] = buf
	}

	require.Equal(t, pagesAfterFirstRound, len(*f.pools[classIdx].blocks.Load()),
		"second round should recycle freed units, not grow")
}

func TestFacadeCloseReleasesPages(t *testing.T) {
	f := NewFacade()

	buf, err := f.Malloc(128)
	require.NoError(t, err)
	f.Free(buf)

	classIdx, ok := classFor(128 + headerSize)
	require.True(t, ok)
	require.NotEmpty(t, *f.pools[classIdx].blocks.Load())

	require.NoError(t, f.Close())
	for _, p := range f.pools {
		require.Empty(t, *p.blocks.Load())
	}
}

func TestFacadeBigAllocPassesThroughOS(t *testing.T) {
	f := NewFacade()

	buf, err := f.Malloc(MaxClassSize + 1024)
	require.NoError(t, err)
	require.Len(t, buf, MaxClassSize+1024)
	buf[0] = 1
	buf[len(buf)-1] = 2
	f.Free(buf)
}

func TestFacadeConcurrentAllocFree(t *testing.T) {
	f := NewFacade()

	const (
		goroutines = 16
		perGo      = 500
	)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGo; i++ {
				buf, err := f.Malloc(128)
				require.NoError(t, err)
				buf[0] = 7
				f.Free(buf)
			}
		}()
	}
	wg.Wait()
}
