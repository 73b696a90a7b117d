//go:build windows
// +build windows

// File: affinity/affinity_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows-specific implementation for setting thread CPU affinity.

package affinity

import (
	"golang.org/x/sys/windows"
)

var procSetThreadAffinityMask = windows.NewLazySystemDLL("kernel32.dll").NewProc("SetThreadAffinityMask")

// setAffinityPlatform sets thread affinity to a given CPU for Windows and
// returns a function that reinstates the mask SetThreadAffinityMask replaced.
func setAffinityPlatform(cpuID int) (func() error, error) {
	prev, err := setThreadAffinityMask(uintptr(1) << cpuID)
	if err != nil {
		return nil, err
	}
	return func() error {
		_, err := setThreadAffinityMask(prev)
		return err
	}, nil
}

func setThreadAffinityMask(mask uintptr) (uintptr, error) {
	prev, _, err := procSetThreadAffinityMask.Call(uintptr(windows.CurrentThread()), mask)
	if prev == 0 {
		return 0, err
	}
	return prev, nil
}
