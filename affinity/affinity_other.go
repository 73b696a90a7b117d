//go:build !linux && !windows
// +build !linux,!windows

// File: affinity/affinity_other.go
// Author: momentics <momentics@gmail.com>

package affinity

import "errors"

// setAffinityPlatform reports that pinning is unavailable here.
func setAffinityPlatform(cpuID int) (func() error, error) {
	return nil, errors.New("affinity: not supported on this platform")
}
