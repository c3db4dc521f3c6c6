// Package host describes and prepares the machine a sweep runs on.
package host

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	gohost "github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// ErrInsufficientMemory is returned when the backing array would not fit in
// available memory.
var ErrInsufficientMemory = errors.New("insufficient memory")

// Notes returns a dotted, file-name-safe description of the machine, e.g.
// "intel.r.xeon.r.cpu.e5-2620.v2.linux.6.6.go1.24.0". Facts gopsutil cannot
// read are skipped.
func Notes(ctx context.Context) string {
	var model, platform, kernel string

	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		model = infos[0].ModelName
	}

	if info, err := gohost.InfoWithContext(ctx); err == nil {
		platform = info.OS
		kernel = info.KernelVersion
	}

	if platform == "" {
		platform = runtime.GOOS
	}

	return formatNotes(model, platform, kernel, runtime.Version())
}

func formatNotes(parts ...string) string {
	var b strings.Builder

	dot := false
	for _, part := range parts {
		for _, r := range strings.ToLower(part) {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
				if dot && b.Len() > 0 {
					b.WriteByte('.')
				}
				b.WriteRune(r)
				dot = false
			default:
				dot = true
			}
		}
		dot = true
	}

	return b.String()
}

// CheckMemory fails when fewer than need bytes are available.
func CheckMemory(ctx context.Context, need uint64) error {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return fmt.Errorf("read memory stats: %w", err)
	}

	if vm.Available < need {
		return fmt.Errorf("%w: need %d bytes, %d available",
			ErrInsufficientMemory, need, vm.Available)
	}

	return nil
}
