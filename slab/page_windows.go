//go:build windows

package slab

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

func systemPageSize() int {
	var info windows.SystemInfo
	windows.GetSystemInfo(&info)
	return int(info.PageSize)
}

// systemMemoryAlloc reserves and commits size bytes via VirtualAlloc.
func systemMemoryAlloc(size int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

// systemMemoryFree releases a mapping obtained from systemMemoryAlloc.
func systemMemoryFree(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&b[0]))
	return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
}
