//go:build linux

package backing

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// allocate maps anonymous memory so the array is page aligned and lives
// outside the Go heap, where the collector never scans it.
func allocate(m uint64) (*Array, error) {
	size := m * ElementBytes
	if size/ElementBytes != m || size > uint64(^uint(0)>>1) {
		return nil, fmt.Errorf("backing array of %d elements is too large", m)
	}

	mem, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE,
	)
	if err != nil {
		// Fall back to the Go heap, which loses the alignment guarantee.
		return allocateHeap(m), nil
	}

	// Huge pages cut TLB misses on random access; the hint may be ignored.
	_ = unix.Madvise(mem, unix.MADV_HUGEPAGE)

	return &Array{
		Data:    unsafe.Slice((*int32)(unsafe.Pointer(&mem[0])), m),
		Aligned: true,
		release: func() error { return unix.Munmap(mem) },
	}, nil
}
