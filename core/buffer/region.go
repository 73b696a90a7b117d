// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Backing storage for the two slots of a DoubleBuffer.

package buffer

const hugePageSize = 2 << 20

// region is one contiguous allocation holding both slots, so the slots share
// a single lifetime.
type region struct {
	raw    []byte
	mapped bool
	free   func([]byte) error
}

func heapRegion(n int) *region {
	return &region{raw: make([]byte, n)}
}

func (r *region) release() error {
	if r.free == nil || r.raw == nil {
		return nil
	}
	err := r.free(r.raw)
	r.raw = nil
	return err
}
