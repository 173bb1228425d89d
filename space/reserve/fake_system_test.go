package reserve

import (
	"errors"
	"fmt"
	"sync"
)

// fakeSystem simulates the OS address-space primitives over a virtual
// address range, so manager tests can script placements, denials and
// misplacements without touching real memory.
type fakeSystem struct {
	mu sync.Mutex

	// bump is where OS-chosen placements go, growing upward.
	bump uintptr

	reserved  map[uintptr]uintptr // base -> size
	committed map[uintptr]uintptr // base -> size

	denyAll    bool    // refuse every reservation
	ignoreHint bool    // place every request from bump, as if hints were occupied
	misplace   uintptr // non-zero: answer hinted requests at this base instead

	reserveCalls int
	releaseCalls int
}

func newFakeSystem(bump uintptr) *fakeSystem {
	return &fakeSystem{
		bump:      bump,
		reserved:  make(map[uintptr]uintptr),
		committed: make(map[uintptr]uintptr),
	}
}

func (f *fakeSystem) overlaps(base, size uintptr) bool {
	for b, s := range f.reserved {
		if base < b+s && b < base+size {
			return true
		}
	}
	return false
}

func (f *fakeSystem) Reserve(hint, size, align uintptr) (uintptr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reserveCalls++

	if f.denyAll {
		return 0, errors.New("fake: address space exhausted")
	}

	base := hint
	if f.misplace != 0 {
		base = f.misplace
	}
	if base == 0 || f.ignoreHint || f.overlaps(base, size) {
		base = (f.bump + align - 1) &^ (align - 1)
		for f.overlaps(base, size) {
			base += align
		}
	}
	if base&(align-1) != 0 {
		return 0, fmt.Errorf("fake: misaligned base %#x", base)
	}
	f.reserved[base] = size
	if end := base + size; end > f.bump {
		f.bump = end
	}
	return base, nil
}

func (f *fakeSystem) Commit(base, size uintptr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for b, s := range f.reserved {
		if base >= b && base+size <= b+s {
			f.committed[base] = size
			return nil
		}
	}
	return fmt.Errorf("fake: commit outside any reservation at %#x", base)
}

func (f *fakeSystem) Release(base, size uintptr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseCalls++
	if _, ok := f.reserved[base]; !ok {
		return fmt.Errorf("fake: release of unknown reservation at %#x", base)
	}
	delete(f.reserved, base)
	return nil
}
