//go:build linux

package host

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// PinCPU locks the calling goroutine to its OS thread and, for cpu >= 0,
// binds that thread to the given CPU. Call UnpinCPU when done.
func PinCPU(cpu int) error {
	runtime.LockOSThread()

	if cpu < 0 {
		return nil
	}

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()

		return fmt.Errorf("set affinity to cpu %d: %w", cpu, err)
	}

	return nil
}
