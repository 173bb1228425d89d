//go:build linux || darwin

package vmem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Reserve asks the kernel for size bytes of address space at or near hint,
// without committing physical pages. The returned base may differ from hint;
// callers that care must check. A zero hint lets the kernel pick.
func Reserve(hint, size uintptr) (uintptr, error) {
	p, err := unix.MmapPtr(-1, 0, unsafe.Pointer(hint), size,
		unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE|unix.MAP_NORESERVE)
	if err != nil {
		return 0, fmt.Errorf("vmem: reserve %d bytes at %#x: %w", size, hint, err)
	}
	return uintptr(p), nil
}

// ReserveAligned reserves size bytes aligned to align (a power of two).
// If the kernel's placement is already aligned we keep it as-is; otherwise we
// over-reserve by align, carve out the aligned window, and give back the
// head and tail so they never count against the process.
func ReserveAligned(hint, size, align uintptr) (uintptr, error) {
	if align&(align-1) != 0 {
		return 0, fmt.Errorf("vmem: alignment %#x is not a power of two", align)
	}
	base, err := Reserve(hint, size)
	if err != nil {
		return 0, err
	}
	if base&(align-1) == 0 {
		return base, nil
	}

	// Misaligned placement. Trade it for an over-sized reservation and trim.
	if err := Release(base, size); err != nil {
		return 0, err
	}
	base, err = Reserve(hint, size+align)
	if err != nil {
		return 0, err
	}
	aligned := (base + align - 1) &^ (align - 1)
	if head := aligned - base; head > 0 {
		if err := Release(base, head); err != nil {
			return 0, err
		}
	}
	if tail := (base + align) - aligned; tail > 0 {
		if err := Release(aligned+size, tail); err != nil {
			return 0, err
		}
	}
	return aligned, nil
}

// Commit backs [base, base+size) with read-write physical pages. The range
// must lie inside a prior reservation.
func Commit(base, size uintptr) error {
	b := unsafe.Slice((*byte)(unsafe.Pointer(base)), size)
	if err := unix.Mprotect(b, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("vmem: commit %d bytes at %#x: %w", size, base, err)
	}
	return nil
}

// Release returns [base, base+size) to the kernel. Only reservations that
// were never handed out to the heap may be released.
func Release(base, size uintptr) error {
	if err := unix.MunmapPtr(unsafe.Pointer(base), size); err != nil {
		return fmt.Errorf("vmem: release %d bytes at %#x: %w", size, base, err)
	}
	return nil
}
