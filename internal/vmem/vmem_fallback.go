//go:build !linux && !darwin && !windows

// Package vmem provides the reserve/commit address-space primitives used to
// grow the managed heap.
package vmem

import (
	"fmt"
	"sync"
	"unsafe"
)

// Platforms without a reserve-without-commit primitive get a heap-backed
// simulation: every reservation is an ordinary allocation kept alive in a
// package-level table so its address stays stable. Commit is a no-op
// because the memory is already usable.

var (
	mu       sync.Mutex
	backings = make(map[uintptr][]byte)
)

// Reserve simulates an address-space reservation with a heap allocation.
// The hint is ignored; the allocator places the block.
func Reserve(hint, size uintptr) (uintptr, error) {
	return ReserveAligned(hint, size, 1)
}

// ReserveAligned allocates size bytes aligned to align by over-allocating.
func ReserveAligned(_, size, align uintptr) (uintptr, error) {
	if align&(align-1) != 0 {
		return 0, fmt.Errorf("vmem: alignment %#x is not a power of two", align)
	}
	buf := make([]byte, size+align)
	base := uintptr(unsafe.Pointer(&buf[0]))
	aligned := (base + align - 1) &^ (align - 1)
	mu.Lock()
	backings[aligned] = buf
	mu.Unlock()
	return aligned, nil
}

// Commit is a no-op: simulated reservations are already backed.
func Commit(base, size uintptr) error {
	return nil
}

// Release drops the backing allocation for a reservation obtained from
// Reserve or ReserveAligned.
func Release(base, size uintptr) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := backings[base]; !ok {
		return fmt.Errorf("vmem: release of unknown reservation at %#x", base)
	}
	delete(backings, base)
	return nil
}
