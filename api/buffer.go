// Package api
// Author: momentics
//
// Contracts for the lock-free double buffer.
//
// All slices returned by a DoubleBuffer alias internal storage. A slice
// returned by Get or Put stays valid until the second publication after it
// was obtained, at which point the writer reuses that slot. Callers that need
// a stable view take a Snapshot.

package api

// DoubleBuffer is a single-writer, multi-reader, fixed-size byte buffer.
type DoubleBuffer interface {
	// Put copies src into the inactive slot and publishes it.
	// len(src) must equal Size().
	Put(src []byte) ([]byte, error)

	// Get returns the current slot. Never blocks, never allocates.
	Get() []byte

	// Clear publishes an all-zero slot.
	Clear()

	// Snapshot copies the current slot into dst and returns it.
	Snapshot(dst []byte) []byte

	// Size returns the fixed slot length.
	Size() int

	// Generation returns the number of publications so far.
	Generation() uint64

	// Stats exposes accounting counters for observability.
	Stats() DoubleBufferStats
}

// DoubleBufferStats aggregates publication counters.
type DoubleBufferStats struct {
	Size       int
	Puts       uint64
	Clears     uint64
	Rejected   uint64
	Generation uint64
	Current    int
	Mapped     bool
}
