package space

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Map is the process-wide table of per-space states. It is the single source
// of truth for classification: one atomic cell per space, allocated once at
// startup, never resized, never freed.
//
// Query is a lock-free atomic load and is safe from any goroutine at any
// time. State transitions are monotone (Unknown -> Reserved | Tainted, both
// terminal) and all of them serialize on one mutex: TryReserveRange must
// validate and mark a whole contiguous run atomically with respect to every
// other mutation, and letting taints slip between its validate and mark
// steps would let a reservation overwrite a just-tainted cell. The taint
// path stays cheap because it only takes the mutex for the at-most-2^N
// transitions that actually happen; repeat sightings fail fast on a load.
type Map struct {
	geo   Geometry
	cells []atomic.Uint32

	// mu serializes all state transitions. Loads never take it.
	mu sync.Mutex

	stats mapStats
}

// mapStats counts map activity. All fields are atomics so Stats can be read
// without the transition mutex.
type mapStats struct {
	reservedSpaces atomic.Int64
	taintedSpaces  atomic.Int64
	reservations   atomic.Uint64
	conflicts      atomic.Uint64
	taintRacesLost atomic.Uint64
}

// NewMap allocates the state table for the given geometry. Every cell
// starts Unknown.
func NewMap(geo Geometry) *Map {
	return &Map{
		geo:   geo,
		cells: make([]atomic.Uint32, geo.NumSpaces()),
	}
}

// Geometry returns the geometry the map was built with.
func (m *Map) Geometry() Geometry { return m.geo }

// Query returns the current state of id. Lock-free; valid for any id at any
// time. Ids beyond the tracked range can never be reserved and read as
// Tainted.
func (m *Map) Query(id SpaceID) State {
	if int(id) >= len(m.cells) {
		return StateTainted
	}
	return State(m.cells[id].Load())
}

// TryTaint marks id as containing a foreign pointer. It returns true iff
// this call performed the Unknown -> Tainted transition. A false return
// means the space is already terminal - reserved or tainted by someone
// else - which is all the caller needs to know: either way the state is
// now resolved.
func (m *Map) TryTaint(id SpaceID) bool {
	if int(id) >= len(m.cells) {
		return false
	}
	// Fast fail without the mutex: terminal states never change, so a
	// non-Unknown load is conclusive.
	if State(m.cells[id].Load()) != StateUnknown {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.cells[id].CompareAndSwap(uint32(StateUnknown), uint32(StateTainted)) {
		// Lost the race to a concurrent taint or reservation.
		m.stats.taintRacesLost.Add(1)
		return false
	}
	m.stats.taintedSpaces.Add(1)
	return true
}

// TryReserveRange claims the contiguous run [first, first+count) for the
// managed heap. It validates that every id in the run is still Unknown and,
// only then, marks the whole run Reserved. Validation and marking happen
// under the transition mutex, so no other mutation can interleave: a failed
// call changes nothing, and a successful call leaves no id behind.
//
// A run touching a Tainted id fails with ErrConflict - foreign pointers
// were seen there and the heap may never claim it. A run overlapping an
// existing reservation fails the same way, which is what makes two
// concurrent reservations over overlapping runs mutually exclusive.
func (m *Map) TryReserveRange(first SpaceID, count int) error {
	if count <= 0 || int(first)+count > len(m.cells) {
		return fmt.Errorf("%w: [%d, %d)", ErrBadRange, first, int(first)+count)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := 0; i < count; i++ {
		if s := State(m.cells[int(first)+i].Load()); s != StateUnknown {
			m.stats.conflicts.Add(1)
			return fmt.Errorf("%w: id %d is %s", ErrConflict, int(first)+i, s)
		}
	}
	for i := 0; i < count; i++ {
		m.cells[int(first)+i].Store(uint32(StateReserved))
	}
	m.stats.reservedSpaces.Add(int64(count))
	m.stats.reservations.Add(1)
	return nil
}
