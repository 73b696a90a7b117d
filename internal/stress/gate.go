// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stress

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// gateSlot is padded so readers announcing on neighbouring slots do not
// share a cache line.
type gateSlot struct {
	active atomic.Uint64 // announced generation + 1, 0 when idle
	_      cpu.CacheLinePad
}

// gate keeps the writer from reusing a slot some reader may still hold.
// A reader announces the generation it starts from before calling Get and
// withdraws the announcement once done; the writer, about to publish on top
// of generation gen, waits for every reader that announced an older one.
type gate struct {
	slots []gateSlot
}

func newGate(readers int) *gate {
	return &gate{slots: make([]gateSlot, readers)}
}

func (g *gate) enter(r int, gen uint64) { g.slots[r].active.Store(gen + 1) }

func (g *gate) leave(r int) { g.slots[r].active.Store(0) }

// wait returns once no reader started before generation gen, or stop is set.
func (g *gate) wait(gen uint64, stop *atomic.Bool) {
	for i := range g.slots {
		for spins := 0; ; spins++ {
			a := g.slots[i].active.Load()
			if a == 0 || a-1 >= gen || stop.Load() {
				break
			}
			if spins&15 == 15 {
				runtime.Gosched()
			}
		}
	}
}
