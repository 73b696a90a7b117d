//go:build !linux && !windows

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

// mapRegion falls back to the Go heap where no mapping allocator exists.
func mapRegion(n int) *region {
	return heapRegion(n)
}
