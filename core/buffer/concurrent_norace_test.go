//go:build !race

package buffer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestDoubleBuffer_FreeRunning lets the writer lap readers at will. Reads
// that overlapped a publication are discarded; every other read must be a
// whole publication.
func TestDoubleBuffer_FreeRunning(t *testing.T) {
	const (
		size    = 1024
		readers = 4
	)
	b := mustNew(t, size)

	var stop atomic.Bool
	var stable, overrun, tears atomic.Int64
	var wg sync.WaitGroup
	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				g := b.Generation()
				ok := uniform(b.Get())
				if b.Generation() != g {
					overrun.Add(1)
					continue
				}
				stable.Add(1)
				if !ok {
					tears.Add(1)
				}
			}
		}()
	}

	src := make([]byte, size)
	deadline := time.Now().Add(200 * time.Millisecond)
	for i := 1; time.Now().Before(deadline); i++ {
		for j := range src {
			src[j] = byte(i)
		}
		if _, err := b.Put(src); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	stop.Store(true)
	wg.Wait()

	if n := tears.Load(); n != 0 {
		t.Errorf("observed %d torn reads among %d stable reads", n, stable.Load())
	}
	t.Logf("stable=%d overrun=%d generation=%d", stable.Load(), overrun.Load(), b.Generation())
}
