// File: core/buffer/region_windows.go
//go:build windows
// +build windows

//
// Windows-specific slot storage using VirtualAlloc.
// Fallback to Go heap on failure.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// mapRegion reserves and commits n zero-filled bytes via VirtualAlloc.
func mapRegion(n int) *region {
	addr, err := windows.VirtualAlloc(0, uintptr(n),
		windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil || addr == 0 {
		return heapRegion(n)
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
	return &region{raw: data, mapped: true, free: virtualFree}
}

// virtualFree releases the whole reservation starting at data[0].
func virtualFree(data []byte) error {
	return windows.VirtualFree(uintptr(unsafe.Pointer(&data[0])), 0, windows.MEM_RELEASE)
}
