package host

import "runtime"

// UnpinCPU releases the thread lock taken by PinCPU. The affinity mask of
// the thread is left as is; the runtime retires locked threads on exit.
func UnpinCPU() {
	runtime.UnlockOSThread()
}
