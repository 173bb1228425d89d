package reserve

import (
	"github.com/joshuapare/spacekit/internal/vmem"
)

// System abstracts the OS address-space primitives the manager needs:
// reserve-without-commit at a hint, commit physical backing for part of a
// reservation, and release (used only for candidate reservations that
// conflicted before being handed out - committed-for-use space is never
// returned to the OS).
type System interface {
	// Reserve obtains size bytes of uncommitted address space aligned to
	// align, at or near hint (0 lets the platform place it). Returns the
	// actual base, which may differ from hint.
	Reserve(hint, size, align uintptr) (uintptr, error)

	// Commit backs [base, base+size) with usable physical pages.
	Commit(base, size uintptr) error

	// Release gives [base, base+size) back to the platform.
	Release(base, size uintptr) error
}

// osSystem is the production System, backed by internal/vmem.
type osSystem struct{}

// OS returns the real, platform-backed System.
func OS() System { return osSystem{} }

func (osSystem) Reserve(hint, size, align uintptr) (uintptr, error) {
	return vmem.ReserveAligned(hint, size, align)
}

func (osSystem) Commit(base, size uintptr) error {
	return vmem.Commit(base, size)
}

func (osSystem) Release(base, size uintptr) error {
	return vmem.Release(base, size)
}
