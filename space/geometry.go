package space

import (
	"fmt"
	"math/bits"
)

const (
	// MinPrefixBits is the smallest supported prefix size. Fewer than 8 bits
	// would make individual spaces so large that a single foreign mapping
	// taints an enormous slice of the address space.
	MinPrefixBits = 8

	// MaxPrefixBits caps the state table at 2^26 cells (256 MiB of uint32
	// cells), which is already far past any sensible configuration.
	MaxPrefixBits = 26

	// MinSpaceShift is the smallest supported per-space shift. Spaces below
	// 64 KiB are finer-grained than any OS reservation granularity we target.
	MinSpaceShift = 16

	// trackedAddrBits64 is how much of a 64-bit address we track. Current
	// hardware and OSes hand out user addresses well inside 48 bits, so
	// reserving table cells for the full 64 would waste 65536x the memory
	// for ids that can never be reserved.
	trackedAddrBits64 = 48

	// trackedAddrBits32 tracks the whole 32-bit address space.
	trackedAddrBits32 = 32
)

// Config carries the startup parameters for the classification subsystem.
// It is read once; the derived Geometry is immutable afterwards.
type Config struct {
	// PrefixBits is N: the address space is carved into 2^N spaces.
	PrefixBits uint

	// WordBits selects the target word width (32 or 64). Zero means the
	// width of the platform this binary was built for.
	WordBits uint
}

// Geometry is the immutable shape of the classified address space:
// 2^PrefixBits spaces of 2^Shift bytes each, covering the tracked portion
// of the target's address range.
type Geometry struct {
	prefixBits uint
	wordBits   uint
	shift      uint
}

// NewGeometry validates cfg and derives the space geometry.
// The per-space shift is L = W - N, where W is the tracked address width
// (48 for 64-bit targets, 32 for 32-bit targets).
func NewGeometry(cfg Config) (Geometry, error) {
	wordBits := cfg.WordBits
	if wordBits == 0 {
		wordBits = bits.UintSize
	}
	var tracked uint
	switch wordBits {
	case 64:
		tracked = trackedAddrBits64
	case 32:
		tracked = trackedAddrBits32
	default:
		return Geometry{}, fmt.Errorf("space: unsupported word width %d (want 32 or 64)", wordBits)
	}
	if wordBits > bits.UintSize {
		return Geometry{}, fmt.Errorf("space: %d-bit geometry on a %d-bit build", wordBits, bits.UintSize)
	}
	if cfg.PrefixBits < MinPrefixBits {
		return Geometry{}, fmt.Errorf("space: prefix bits %d below minimum %d", cfg.PrefixBits, MinPrefixBits)
	}
	if cfg.PrefixBits > MaxPrefixBits {
		return Geometry{}, fmt.Errorf("space: prefix bits %d above maximum %d", cfg.PrefixBits, MaxPrefixBits)
	}
	shift := tracked - cfg.PrefixBits
	if shift < MinSpaceShift {
		return Geometry{}, fmt.Errorf("space: prefix bits %d leave space shift %d below minimum %d",
			cfg.PrefixBits, shift, MinSpaceShift)
	}
	return Geometry{
		prefixBits: cfg.PrefixBits,
		wordBits:   wordBits,
		shift:      shift,
	}, nil
}

// PrefixBits returns N, the number of id bits.
func (g Geometry) PrefixBits() uint { return g.prefixBits }

// WordBits returns the target word width the geometry was built for.
func (g Geometry) WordBits() uint { return g.wordBits }

// Shift returns L, the per-space shift: a space is 2^L bytes at 2^L alignment.
func (g Geometry) Shift() uint { return g.shift }

// SpaceSize returns the size in bytes of one space.
func (g Geometry) SpaceSize() uintptr { return uintptr(1) << g.shift }

// NumSpaces returns the number of tracked spaces, 2^N.
func (g Geometry) NumSpaces() int { return 1 << g.prefixBits }

// SpaceID maps a word to the id of the space containing it. ok is false when
// the word lies beyond the tracked address range (for example a kernel-half
// or non-canonical 64-bit value); such words can never be inside the heap.
func (g Geometry) SpaceID(word uintptr) (SpaceID, bool) {
	id := uint64(word) >> g.shift
	if id >= uint64(g.NumSpaces()) {
		return 0, false
	}
	return SpaceID(id), true
}

// BaseOf returns the first address of the space with the given id.
func (g Geometry) BaseOf(id SpaceID) uintptr {
	return uintptr(id) << g.shift
}

// SpanIDs maps the byte range [base, base+size) to the ids covering it.
// It fails when base is not space-aligned, size is not a positive multiple
// of the space size, or the range runs past the tracked address space.
func (g Geometry) SpanIDs(base, size uintptr) (first SpaceID, count int, err error) {
	ssize := g.SpaceSize()
	if base&(ssize-1) != 0 {
		return 0, 0, fmt.Errorf("space: base %#x not aligned to space size %#x", base, ssize)
	}
	if size == 0 || size&(ssize-1) != 0 {
		return 0, 0, fmt.Errorf("space: size %#x not a positive multiple of space size %#x", size, ssize)
	}
	id, ok := g.SpaceID(base)
	if !ok {
		return 0, 0, fmt.Errorf("space: base %#x beyond tracked address range", base)
	}
	n := int(size >> g.shift)
	if int(id)+n > g.NumSpaces() {
		return 0, 0, fmt.Errorf("space: range [%#x, %#x) runs past tracked address range", base, base+size)
	}
	return id, n, nil
}
