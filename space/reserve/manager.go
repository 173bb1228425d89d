package reserve

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/joshuapare/spacekit/space"
)

// ReservedRange is a contiguous run of spaces claimed for the managed heap,
// backed by one OS reservation. Ownership of the underlying address range
// passes to the allocator that requested it and is never relinquished.
type ReservedRange struct {
	Base  uintptr       // first byte of the range, space-aligned
	Size  uintptr       // bytes, a multiple of the space size
	First space.SpaceID // id of the first covered space
	Count int           // number of covered spaces
}

// End returns the first byte past the range.
func (r ReservedRange) End() uintptr { return r.Base + r.Size }

// Contains reports whether word falls inside the range.
func (r ReservedRange) Contains(word uintptr) bool {
	return word >= r.Base && word < r.End()
}

// Manager grows the managed heap: it obtains OS reservations at policy-
// chosen candidate addresses, validates them against the classification
// map (a tainted space can never be reclaimed), and commits the backing
// for ranges that pass. One manager serves the whole process; the
// allocator calls Reserve whenever it needs more address space.
type Manager struct {
	geo space.Geometry
	m   *space.Map
	sys System
	pol Policy
	log *slog.Logger

	mu sync.Mutex // guards the growth bookkeeping below

	// grownEnd is the first byte past the most recent OS reservation.
	// Preferring it as the next candidate keeps the heap contiguous and
	// the id range unfragmented.
	grownEnd uintptr

	// [headStart, headEnd) is surplus from a large up-front reservation:
	// already OS-reserved and marked Reserved in the map, waiting to be
	// handed out. Later calls are served from here before touching the OS.
	headStart, headEnd uintptr

	total    uintptr // OS-reserved bytes, counted against Policy.TotalCap
	firstRes bool    // true until the first Reserve call completes
}

// NewManager returns a manager over the global map using the given OS
// primitives. Zero policy fields are filled with platform defaults. A nil
// logger discards reservation logging.
func NewManager(m *space.Map, sys System, pol Policy, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		geo:      m.Geometry(),
		m:        m,
		sys:      sys,
		pol:      pol.withDefaults(m.Geometry()),
		log:      log,
		firstRes: true,
	}
}

// TotalReserved returns the total OS-reserved bytes so far, including any
// not-yet-handed-out surplus from an up-front reservation.
func (mgr *Manager) TotalReserved() uintptr {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	return mgr.total
}

// Reserve claims at least size bytes of address space for the heap. size
// must be a positive multiple of the space size; hint, when non-zero, is
// the preferred base address.
//
// Candidates are tried in policy order. For each one the OS reservation is
// obtained first, then validated against the map; a conflict (the range
// overlaps a tainted or already-reserved space) releases the candidate and
// moves on. Success commits the physical backing and returns the range.
//
// Failure modes: ErrOSDenied when the platform never produced a usable
// reservation, ErrExhausted when every produced candidate conflicted, and
// ErrCapExceeded when the policy cap would be passed. All are returned to
// the caller; nothing retries indefinitely.
func (mgr *Manager) Reserve(size, hint uintptr) (ReservedRange, error) {
	ssize := mgr.geo.SpaceSize()
	if size == 0 || size&(ssize-1) != 0 {
		return ReservedRange{}, fmt.Errorf("%w: got %#x, space size %#x", ErrBadSize, size, ssize)
	}

	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	// One-shot large up-front reservation (constrained targets): stake out
	// a big contiguous region while the address space is still empty. The
	// surplus beyond this request becomes headroom for later calls.
	if mgr.firstRes {
		mgr.firstRes = false
		mgr.stakeOut(size, hint)
	}

	// Serve from staked-out headroom first: the space is already reserved
	// and validated, only the backing is missing.
	if mgr.headEnd-mgr.headStart >= size {
		return mgr.serveHeadroom(size)
	}

	if mgr.pol.TotalCap != 0 && mgr.total+size > mgr.pol.TotalCap {
		return ReservedRange{}, fmt.Errorf("%w: %#x reserved, %#x requested, cap %#x",
			ErrCapExceeded, mgr.total, size, mgr.pol.TotalCap)
	}

	r, err := mgr.tryCandidates(size, hint)
	if err != nil {
		return ReservedRange{}, err
	}
	if err := mgr.sys.Commit(r.Base, r.Size); err != nil {
		// The address range is marked Reserved and stays ours either way;
		// only the physical backing failed. Surface it as an allocation
		// failure.
		return ReservedRange{}, fmt.Errorf("reserve: commit failed: %w", err)
	}
	return r, nil
}

// stakeOut attempts the policy's up-front reservation sizes, largest
// first, and on success records the region as headroom. Failures are
// silent: the normal candidate walk follows. Caller holds mgr.mu.
func (mgr *Manager) stakeOut(size, hint uintptr) {
	for _, initial := range mgr.pol.InitialSizes {
		if initial < size || initial&(mgr.geo.SpaceSize()-1) != 0 {
			continue
		}
		if mgr.pol.TotalCap != 0 && initial > mgr.pol.TotalCap {
			continue
		}
		r, err := mgr.tryCandidates(initial, hint)
		if err != nil {
			continue
		}
		mgr.headStart = r.Base
		mgr.headEnd = r.End()
		mgr.log.Info("reserve: up-front region staked out",
			"base", fmt.Sprintf("%#x", r.Base), "size", initial)
		return
	}
}

// serveHeadroom hands out the leading size bytes of the staked-out region.
// Caller holds mgr.mu and has checked that the headroom fits.
func (mgr *Manager) serveHeadroom(size uintptr) (ReservedRange, error) {
	base := mgr.headStart
	first, count, err := mgr.geo.SpanIDs(base, size)
	if err != nil {
		// Headroom is always aligned and in range; failing here is a bug.
		return ReservedRange{}, fmt.Errorf("reserve: headroom corrupted: %w", err)
	}
	if err := mgr.sys.Commit(base, size); err != nil {
		return ReservedRange{}, fmt.Errorf("reserve: commit failed: %w", err)
	}
	mgr.headStart += size
	mgr.log.Info("reserve: range served from headroom",
		"base", fmt.Sprintf("%#x", base), "size", size)
	return ReservedRange{Base: base, Size: size, First: first, Count: count}, nil
}

// tryCandidates walks the placement candidates for one request size and
// returns a claimed but not yet committed range. Caller holds mgr.mu.
func (mgr *Manager) tryCandidates(size, hint uintptr) (ReservedRange, error) {
	ssize := mgr.geo.SpaceSize()
	gotReservation := false

	for _, cand := range mgr.pol.placements(mgr.geo, hint, mgr.grownEnd) {
		base, err := mgr.sys.Reserve(cand, size, ssize)
		if err != nil {
			mgr.log.Debug("reserve: os refused candidate",
				"candidate", fmt.Sprintf("%#x", cand), "size", size, "err", err)
			continue
		}
		gotReservation = true

		first, count, err := mgr.geo.SpanIDs(base, size)
		if err != nil {
			// The OS placed us outside the tracked range; unusable.
			mgr.log.Debug("reserve: placement outside tracked range",
				"base", fmt.Sprintf("%#x", base), "err", err)
			mgr.release(base, size)
			continue
		}

		if err := mgr.m.TryReserveRange(first, count); err != nil {
			if !errors.Is(err, space.ErrConflict) {
				mgr.release(base, size)
				return ReservedRange{}, err
			}
			// A foreign pointer was seen somewhere in this range before we
			// could claim it. The range is lost to the heap forever; give
			// the reservation back and try elsewhere.
			mgr.log.Debug("reserve: candidate conflicts with tainted space",
				"base", fmt.Sprintf("%#x", base), "err", err)
			mgr.release(base, size)
			continue
		}

		mgr.grownEnd = base + size
		mgr.total += size
		r := ReservedRange{Base: base, Size: size, First: first, Count: count}
		mgr.log.Info("reserve: range claimed",
			"base", fmt.Sprintf("%#x", base), "size", size,
			"first", int(first), "count", count)
		return r, nil
	}

	if !gotReservation {
		return ReservedRange{}, fmt.Errorf("%w: no candidate produced a reservation for %#x bytes",
			ErrOSDenied, size)
	}
	return ReservedRange{}, fmt.Errorf("%w: %d candidates tried for %#x bytes",
		ErrExhausted, mgr.pol.MaxAttempts, size)
}

func (mgr *Manager) release(base, size uintptr) {
	if err := mgr.sys.Release(base, size); err != nil {
		mgr.log.Warn("reserve: releasing conflicted candidate failed",
			"base", fmt.Sprintf("%#x", base), "err", err)
	}
}
