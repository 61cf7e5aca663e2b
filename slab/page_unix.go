//go:build unix

package slab

import (
	"golang.org/x/sys/unix"
)

// systemPageSize reports the OS page size each class grows by (or an
// integer multiple large enough to hold at least one unit).
func systemPageSize() int {
	return unix.Getpagesize()
}

// systemMemoryAlloc reserves a private, anonymous mapping of size
// bytes. Facade blocks are plain bytes, never GC-traced pointers, so
// hosting them outside the Go heap is sound.
func systemMemoryAlloc(size int) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// systemMemoryFree releases a mapping obtained from systemMemoryAlloc.
func systemMemoryFree(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Munmap(b)
}
