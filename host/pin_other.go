//go:build !linux

package host

import "runtime"

// PinCPU locks the calling goroutine to its OS thread. CPU affinity is only
// supported on Linux; elsewhere cpu is ignored.
func PinCPU(int) error {
	runtime.LockOSThread()

	return nil
}
