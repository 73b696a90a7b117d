// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// CPU pinning for latency-sensitive goroutines such as the double buffer
// writer. Platform-specific implementations live in build-tagged files.

package affinity

import (
	"fmt"
	"runtime"
)

// Pin locks the calling goroutine to its OS thread and binds that thread to
// the given logical CPU. The returned function restores the thread's
// previous CPU mask and then unlocks the thread. If the mask cannot be
// restored the thread stays locked, so the runtime discards it when the
// goroutine exits instead of handing a pinned thread to other goroutines.
func Pin(cpuID int) (unpin func(), err error) {
	if cpuID < 0 || cpuID >= runtime.NumCPU() {
		return nil, fmt.Errorf("affinity: cpu %d out of range [0, %d)", cpuID, runtime.NumCPU())
	}
	runtime.LockOSThread()
	restore, err := setAffinityPlatform(cpuID)
	if err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	return func() {
		if restore() == nil {
			runtime.UnlockOSThread()
		}
	}, nil
}
