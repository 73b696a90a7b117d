// File: core/buffer/region_linux.go
//go:build linux
// +build linux

//
// Linux-specific slot storage using anonymous mmap.
//
// Regions of at least one hugepage are first attempted with MAP_HUGETLB,
// then with regular pages. Fallback to Go heap if mapping fails.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import (
	"golang.org/x/sys/unix"
)

// mapRegion maps n zero-filled bytes outside the Go heap.
func mapRegion(n int) *region {
	if n >= hugePageSize {
		length := ((n + hugePageSize - 1) / hugePageSize) * hugePageSize
		data, err := unix.Mmap(-1, 0, length,
			unix.PROT_READ|unix.PROT_WRITE,
			unix.MAP_ANON|unix.MAP_PRIVATE|unix.MAP_HUGETLB)
		if err == nil {
			return &region{raw: data, mapped: true, free: unix.Munmap}
		}
	}
	data, err := unix.Mmap(-1, 0, n,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return heapRegion(n)
	}
	return &region{raw: data, mapped: true, free: unix.Munmap}
}
