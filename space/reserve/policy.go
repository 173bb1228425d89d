package reserve

import (
	"github.com/joshuapare/spacekit/space"
)

// Default placement constants for 64-bit targets. The chain starts in the
// middle of the 48-bit range, away from the program image, the C heap and
// the stack, and steps by 1 TiB so unrelated mappings rarely collide with
// more than one candidate. Growing contiguously from the previous
// reservation is always preferred over the chain; the chain is the fallback
// that bounds fragmentation of the id range when contiguous growth fails.
const (
	defaultAttempts64 = 128
	defaultAttempts32 = 16
)

// Kept as uint64 variables so the package still compiles for 32-bit
// targets, where the 64-bit chain is never taken.
var (
	hintBase64 = uint64(0x00c0) << 32
	hintStep64 = uint64(1) << 40
)

// Policy controls candidate placement and the retry bound for Reserve.
// A zero value is completed by DefaultPolicy; policies are immutable once
// handed to NewManager.
type Policy struct {
	// MaxAttempts bounds how many candidate placements one Reserve call
	// may try before giving up with ErrExhausted.
	MaxAttempts int

	// TotalCap, when non-zero, caps the sum of all reserved bytes. A
	// user-tunable alternative to progressive growth on constrained
	// targets; 0 means unlimited.
	TotalCap uintptr

	// HintBase overrides the start of the candidate chain. Zero picks the
	// platform default.
	HintBase uintptr

	// HintStep overrides the spacing between chain candidates. Zero picks
	// the platform default.
	HintStep uintptr

	// InitialSizes are reservation sizes to attempt, largest first, on the
	// first ever Reserve call, before falling back to the requested size.
	// Used on 32-bit targets to stake out one large contiguous region up
	// front while the address space is still empty. Nil picks the platform
	// default; an explicit empty slice disables the up-front attempt.
	InitialSizes []uintptr
}

// DefaultPolicy returns the placement policy for the geometry's target.
//
// 64-bit: walk the mid-address-space hint chain; headroom is plentiful, so
// no cap and no up-front reservation.
//
// 32-bit: headroom is scarce. Ask for the lowest available addresses (a
// zero hint base lets the OS place each request, which on 32-bit targets
// means just above the program image), step by one space size, and try a
// large up-front reservation to exploit the address space before foreign
// mappings fragment it.
func DefaultPolicy(geo space.Geometry) Policy {
	if geo.WordBits() == 32 {
		return Policy{
			MaxAttempts: defaultAttempts32,
			HintBase:    0,
			HintStep:    geo.SpaceSize(),
			InitialSizes: []uintptr{
				512 << 20,
				256 << 20,
				128 << 20,
			},
		}
	}
	return Policy{
		MaxAttempts: defaultAttempts64,
		HintBase:    uintptr(hintBase64),
		HintStep:    uintptr(hintStep64),
	}
}

// withDefaults fills the zero fields of a user policy.
func (p Policy) withDefaults(geo space.Geometry) Policy {
	def := DefaultPolicy(geo)
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.HintBase == 0 {
		p.HintBase = def.HintBase
	}
	if p.HintStep == 0 {
		p.HintStep = def.HintStep
	}
	if p.InitialSizes == nil {
		p.InitialSizes = def.InitialSizes
	}
	return p
}

// placements returns the candidate base addresses for one Reserve call, in
// preference order: the caller's hint, then contiguous growth from the end
// of the previous reservation, then the platform chain. All candidates are
// space-aligned and deduplicated; the list is capped at MaxAttempts.
func (p Policy) placements(geo space.Geometry, hint, grown uintptr) []uintptr {
	align := geo.SpaceSize()
	alignUp := func(a uintptr) uintptr { return (a + align - 1) &^ (align - 1) }

	out := make([]uintptr, 0, p.MaxAttempts)
	seen := make(map[uintptr]bool, p.MaxAttempts)
	add := func(a uintptr) {
		if len(out) >= p.MaxAttempts || seen[a] {
			return
		}
		seen[a] = true
		out = append(out, a)
	}

	if hint != 0 {
		add(alignUp(hint))
	}
	if grown != 0 {
		add(alignUp(grown))
	}
	for i := 0; len(out) < p.MaxAttempts && i < p.MaxAttempts; i++ {
		add(alignUp(p.HintBase + uintptr(i)*p.HintStep))
	}
	return out
}
