//go:build windows

package vmem

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// Reserve asks for size bytes of address space at or near hint without
// committing physical pages. A zero hint lets the system pick.
func Reserve(hint, size uintptr) (uintptr, error) {
	p, err := windows.VirtualAlloc(hint, size, windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil && hint != 0 {
		// The hinted region was occupied; let the system place it.
		p, err = windows.VirtualAlloc(0, size, windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	}
	if err != nil {
		return 0, fmt.Errorf("vmem: reserve %d bytes at %#x: %w", size, hint, err)
	}
	return p, nil
}

// ReserveAligned reserves size bytes aligned to align (a power of two).
//
// VirtualFree cannot split a reservation, so trimming is not an option here.
// Instead we probe: reserve an over-sized region to discover an aligned
// window, release it, and re-reserve exactly that window. Another thread can
// steal the window between the two calls, so the probe retries a few times.
func ReserveAligned(hint, size, align uintptr) (uintptr, error) {
	if align&(align-1) != 0 {
		return 0, fmt.Errorf("vmem: alignment %#x is not a power of two", align)
	}
	for try := 0; try < 4; try++ {
		base, err := Reserve(hint, size)
		if err != nil {
			return 0, err
		}
		if base&(align-1) == 0 {
			return base, nil
		}
		if err := Release(base, size); err != nil {
			return 0, err
		}
		probe, err := Reserve(0, size+align)
		if err != nil {
			return 0, err
		}
		aligned := (probe + align - 1) &^ (align - 1)
		if err := Release(probe, size+align); err != nil {
			return 0, err
		}
		got, err := windows.VirtualAlloc(aligned, size, windows.MEM_RESERVE, windows.PAGE_NOACCESS)
		if err == nil && got == aligned {
			return got, nil
		}
		if err == nil {
			_ = Release(got, size)
		}
	}
	return 0, fmt.Errorf("vmem: could not reserve %d bytes aligned to %#x", size, align)
}

// Commit backs [base, base+size) with read-write physical pages. The range
// must lie inside a prior reservation.
func Commit(base, size uintptr) error {
	if _, err := windows.VirtualAlloc(base, size, windows.MEM_COMMIT, windows.PAGE_READWRITE); err != nil {
		return fmt.Errorf("vmem: commit %d bytes at %#x: %w", size, base, err)
	}
	return nil
}

// Release returns a whole reservation to the system. size is accepted for
// interface symmetry; VirtualFree releases the entire region at base.
func Release(base, size uintptr) error {
	_ = size
	if err := windows.VirtualFree(base, 0, windows.MEM_RELEASE); err != nil {
		return fmt.Errorf("vmem: release reservation at %#x: %w", base, err)
	}
	return nil
}
