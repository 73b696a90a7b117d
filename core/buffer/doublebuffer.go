// File: core/buffer/doublebuffer.go
// Package buffer implements a lock-free single-writer double buffer.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// DoubleBuffer owns two equally sized byte slots and an atomic selector.
// The writer fills the inactive slot and then flips the selector, so readers
// always see either the previous or the new publication, never a mix.
// Implements api.DoubleBuffer and api.Debug.

package buffer

import (
	"runtime"
	"sync/atomic"

	"github.com/momentics/hioload-dbuf/api"
	"golang.org/x/sys/cpu"
)

// Ensure compile-time interface compliance.
var (
	_ api.DoubleBuffer = (*DoubleBuffer)(nil)
	_ api.Debug        = (*DoubleBuffer)(nil)
)

// DoubleBuffer is a fixed-size byte buffer with one writer and any number of
// readers. Put and Clear must not be called concurrently with each other;
// use AcquireWriter to have that contract enforced.
type DoubleBuffer struct {
	sel atomic.Uint32 // index of the current slot, 0 or 1
	_   cpu.CacheLinePad

	gen      atomic.Uint64
	puts     atomic.Uint64
	clears   atomic.Uint64
	rejected atomic.Uint64
	owned    atomic.Bool
	closed   atomic.Bool
	_        cpu.CacheLinePad

	size  int
	slots [2][]byte
	mem   *region
}

// New allocates a double buffer with two zero-filled slots of size bytes on
// the Go heap.
func New(size int) (*DoubleBuffer, error) {
	if size <= 0 {
		return nil, invalidSize(size)
	}
	return newDoubleBuffer(size, heapRegion(2*size)), nil
}

// NewMapped is like New but places both slots in one anonymous memory
// mapping outside the Go heap when the platform allows it, falling back to
// the heap otherwise. Close releases the mapping.
func NewMapped(size int) (*DoubleBuffer, error) {
	if size <= 0 {
		return nil, invalidSize(size)
	}
	return newDoubleBuffer(size, mapRegion(2*size)), nil
}

func newDoubleBuffer(size int, mem *region) *DoubleBuffer {
	b := &DoubleBuffer{size: size, mem: mem}
	// Full slice expressions keep append on a returned slot from spilling
	// into its sibling.
	b.slots[0] = mem.raw[0:size:size]
	b.slots[1] = mem.raw[size : 2*size : 2*size]
	return b
}

func invalidSize(size int) error {
	return api.NewError(api.ErrCodeInvalidArgument, "buffer size must be positive").
		WithContext("size", size)
}

// Put copies src into the inactive slot and publishes it. It returns the new
// current slot, which aliases internal storage. len(src) must equal Size();
// otherwise the buffer is left untouched and api.ErrLengthMismatch is
// returned.
func (b *DoubleBuffer) Put(src []byte) ([]byte, error) {
	if b.closed.Load() {
		return nil, api.NewError(api.ErrCodeClosed, "put on closed double buffer")
	}
	if len(src) != b.size {
		b.rejected.Add(1)
		return nil, api.NewError(api.ErrCodeLengthMismatch, "source length does not match buffer size").
			WithContext("size", b.size).
			WithContext("len", len(src))
	}
	next := b.sel.Load() ^ 1
	copy(b.slots[next], src)
	b.sel.Store(next)
	b.gen.Add(1)
	b.puts.Add(1)
	return b.slots[next], nil
}

// Get returns the current slot. The slice aliases internal storage and is
// overwritten by the second publication after this call. After Close it
// returns an empty slice.
func (b *DoubleBuffer) Get() []byte {
	return b.slots[b.sel.Load()]
}

// Clear publishes an all-zero slot using the same protocol as Put.
// Clear on a closed buffer does nothing.
func (b *DoubleBuffer) Clear() {
	if b.closed.Load() {
		return
	}
	next := b.sel.Load() ^ 1
	clear(b.slots[next])
	b.sel.Store(next)
	b.gen.Add(1)
	b.clears.Add(1)
}

// Snapshot copies the current slot into dst, growing it when its capacity is
// short, and returns the filled slice. If the writer laps the copy the
// attempt is discarded and retried. After Close it returns dst[:0].
func (b *DoubleBuffer) Snapshot(dst []byte) []byte {
	if b.closed.Load() {
		return dst[:0]
	}
	if cap(dst) < b.size {
		dst = make([]byte, b.size)
	}
	dst = dst[:b.size]
	for spins := 0; ; spins++ {
		g := b.gen.Load()
		copy(dst, b.slots[b.sel.Load()])
		if b.gen.Load() == g {
			return dst
		}
		if spins&63 == 63 {
			runtime.Gosched()
		}
	}
}

// Size returns the fixed slot length.
func (b *DoubleBuffer) Size() int { return b.size }

// Generation returns the number of successful publications (Put and Clear).
func (b *DoubleBuffer) Generation() uint64 { return b.gen.Load() }

// Current returns the index of the reader-visible slot.
func (b *DoubleBuffer) Current() int { return int(b.sel.Load()) }

// Mapped reports whether the slots live in an off-heap memory mapping.
func (b *DoubleBuffer) Mapped() bool { return b.mem.mapped }

// Stats exposes publication counters.
func (b *DoubleBuffer) Stats() api.DoubleBufferStats {
	return api.DoubleBufferStats{
		Size:       b.size,
		Puts:       b.puts.Load(),
		Clears:     b.clears.Load(),
		Rejected:   b.rejected.Load(),
		Generation: b.gen.Load(),
		Current:    b.Current(),
		Mapped:     b.mem.mapped,
	}
}

// DumpState emits a snapshot of internal state for diagnostics.
func (b *DoubleBuffer) DumpState() map[string]any {
	st := b.Stats()
	return map[string]any{
		"size":         st.Size,
		"puts":         st.Puts,
		"clears":       st.Clears,
		"rejected":     st.Rejected,
		"generation":   st.Generation,
		"current":      st.Current,
		"mapped":       st.Mapped,
		"writer_owned": b.owned.Load(),
		"closed":       b.closed.Load(),
	}
}

// Close releases both slots together. Put and AcquireWriter fail afterwards,
// Clear becomes a no-op, and Get and Snapshot return empty slices. Close is
// part of the writer's side of the contract: it must not run concurrently
// with Put, Clear or readers, and slices obtained earlier must not be used
// once a mapped buffer is closed. Close is idempotent.
func (b *DoubleBuffer) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.slots[0], b.slots[1] = nil, nil
	return b.mem.release()
}
