package reserve

import "errors"

var (
	// ErrBadSize indicates a request that is not a positive multiple of the
	// space size.
	ErrBadSize = errors.New("reserve: size must be a positive multiple of the space size")

	// ErrOSDenied indicates the platform refused every placement outright:
	// no address space was available at all. Reported to the allocator as
	// an allocation failure; never retried beyond the candidate walk.
	ErrOSDenied = errors.New("reserve: os denied address space reservation")

	// ErrExhausted indicates every candidate placement either conflicted
	// with a tainted space or was unusable. Fatal to the triggering
	// allocation request.
	ErrExhausted = errors.New("reserve: candidate placements exhausted")

	// ErrCapExceeded indicates the configured total-reservation cap would
	// be exceeded. Primarily hit on 32-bit and otherwise constrained
	// targets.
	ErrCapExceeded = errors.New("reserve: total reservation cap exceeded")
)
