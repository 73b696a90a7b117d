// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Exclusive write capability for DoubleBuffer.

package buffer

import (
	"sync/atomic"

	"github.com/momentics/hioload-dbuf/api"
)

// Writer is the single write capability of a DoubleBuffer. At most one
// Writer exists per buffer until it is released.
type Writer struct {
	buf      *DoubleBuffer
	released atomic.Bool
}

// AcquireWriter hands out the buffer's write capability. It fails with
// api.ErrWriterBusy while another Writer is held.
func (b *DoubleBuffer) AcquireWriter() (*Writer, error) {
	if b.closed.Load() {
		return nil, api.NewError(api.ErrCodeClosed, "acquire writer on closed double buffer")
	}
	if !b.owned.CompareAndSwap(false, true) {
		return nil, api.NewError(api.ErrCodeWriterBusy, "writer already acquired")
	}
	return &Writer{buf: b}, nil
}

// Put publishes src through the owning buffer.
func (w *Writer) Put(src []byte) ([]byte, error) {
	if w.released.Load() {
		return nil, api.NewError(api.ErrCodeWriterReleased, "put through released writer")
	}
	return w.buf.Put(src)
}

// Clear publishes an all-zero slot through the owning buffer.
func (w *Writer) Clear() error {
	if w.released.Load() {
		return api.NewError(api.ErrCodeWriterReleased, "clear through released writer")
	}
	w.buf.Clear()
	return nil
}

// Buffer returns the buffer this writer publishes to.
func (w *Writer) Buffer() *DoubleBuffer { return w.buf }

// Release gives the write capability back. Calling it twice is harmless.
func (w *Writer) Release() {
	if w.released.CompareAndSwap(false, true) {
		w.buf.owned.Store(false)
	}
}
