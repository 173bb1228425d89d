package reserve

import (
	"math/bits"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/spacekit/space"
)

// newTestSetup builds a platform geometry (N=16), its map, a fake system
// whose bump area starts at id 512, and a small deterministic policy whose
// hint chain starts at id 1024.
func newTestSetup(t *testing.T) (space.Geometry, *space.Map, *fakeSystem, Policy) {
	t.Helper()
	geo, err := space.NewGeometry(space.Config{PrefixBits: 16})
	require.NoError(t, err)
	m := space.NewMap(geo)
	sys := newFakeSystem(geo.BaseOf(512))
	pol := Policy{
		MaxAttempts:  8,
		HintBase:     geo.BaseOf(1024),
		HintStep:     geo.SpaceSize(),
		InitialSizes: []uintptr{}, // no up-front stake-out unless a test opts in
	}
	return geo, m, sys, pol
}

func TestManager_ReserveBasic(t *testing.T) {
	geo, m, sys, pol := newTestSetup(t)
	mgr := NewManager(m, sys, pol, nil)

	r, err := mgr.Reserve(geo.SpaceSize(), 0)
	require.NoError(t, err)
	assert.Equal(t, geo.BaseOf(1024), r.Base, "first candidate comes from the hint chain")
	assert.Equal(t, geo.SpaceSize(), r.Size)
	assert.Equal(t, space.SpaceID(1024), r.First)
	assert.Equal(t, 1, r.Count)

	assert.Equal(t, space.StateReserved, m.Query(1024), "the map must record the claim")
	assert.Equal(t, r.Size, sys.committed[r.Base], "the backing must be committed")
	assert.Equal(t, r.Size, mgr.TotalReserved())
}

func TestManager_ReserveBadSize(t *testing.T) {
	geo, m, sys, pol := newTestSetup(t)
	mgr := NewManager(m, sys, pol, nil)

	_, err := mgr.Reserve(0, 0)
	require.ErrorIs(t, err, ErrBadSize)

	_, err = mgr.Reserve(geo.SpaceSize()/2, 0)
	require.ErrorIs(t, err, ErrBadSize)

	assert.Zero(t, sys.reserveCalls, "invalid requests must never reach the OS")
}

func TestManager_ReserveHonorsHint(t *testing.T) {
	geo, m, sys, pol := newTestSetup(t)
	mgr := NewManager(m, sys, pol, nil)

	hint := geo.BaseOf(2000)
	r, err := mgr.Reserve(2*geo.SpaceSize(), hint)
	require.NoError(t, err)
	assert.Equal(t, hint, r.Base)
	assert.Equal(t, 2, r.Count)
	assert.Equal(t, space.StateReserved, m.Query(2001))
	assert.Equal(t, 1, sys.reserveCalls, "the hinted placement must succeed first try")
}

func TestManager_ContiguousGrowth(t *testing.T) {
	geo, m, _, pol := newTestSetup(t)
	sys := newFakeSystem(geo.BaseOf(512))
	mgr := NewManager(m, sys, pol, nil)

	r1, err := mgr.Reserve(geo.SpaceSize(), 0)
	require.NoError(t, err)
	r2, err := mgr.Reserve(geo.SpaceSize(), 0)
	require.NoError(t, err)

	assert.Equal(t, r1.End(), r2.Base, "growth must prefer the end of the previous reservation")
	assert.Equal(t, space.SpaceID(r1.First+1), r2.First)
}

// TestManager_ConflictRetriesElsewhere: a tainted space inside the first
// candidate forces the manager to give the OS reservation back and move to
// the next candidate.
func TestManager_ConflictRetriesElsewhere(t *testing.T) {
	geo, m, sys, pol := newTestSetup(t)
	require.True(t, m.TryTaint(1024), "foreign pointer seen in the first candidate")
	mgr := NewManager(m, sys, pol, nil)

	r, err := mgr.Reserve(geo.SpaceSize(), 0)
	require.NoError(t, err)
	assert.Equal(t, geo.BaseOf(1025), r.Base, "the next chain candidate must win")
	assert.Equal(t, 1, sys.releaseCalls, "the conflicted reservation must be released")
	assert.Equal(t, space.StateTainted, m.Query(1024), "the tainted space stays tainted")
	assert.Equal(t, space.StateReserved, m.Query(1025))
}

// TestManager_ExhaustedWhenAllCandidatesConflict: with every candidate
// covering a tainted space, the bounded walk ends in ErrExhausted and the
// map is left unchanged beyond the pre-existing taints.
func TestManager_ExhaustedWhenAllCandidatesConflict(t *testing.T) {
	geo, m, sys, pol := newTestSetup(t)
	pol.MaxAttempts = 3
	for id := space.SpaceID(1024); id < 1027; id++ {
		require.True(t, m.TryTaint(id))
	}
	mgr := NewManager(m, sys, pol, nil)

	_, err := mgr.Reserve(geo.SpaceSize(), 0)
	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 3, sys.releaseCalls, "every conflicted candidate must be released")
	assert.Zero(t, mgr.TotalReserved())
	assert.Equal(t, 0, m.Stats().ReservedSpaces)
}

func TestManager_OSDenied(t *testing.T) {
	geo, m, sys, pol := newTestSetup(t)
	sys.denyAll = true
	mgr := NewManager(m, sys, pol, nil)

	_, err := mgr.Reserve(geo.SpaceSize(), 0)
	require.ErrorIs(t, err, ErrOSDenied)
	assert.Equal(t, 0, m.Stats().ReservedSpaces)
}

func TestManager_MisplacedReservationsAreReleased(t *testing.T) {
	if bits.UintSize != 64 {
		t.Skip("32-bit targets track the whole address space")
	}
	geo, m, sys, pol := newTestSetup(t)
	pol.MaxAttempts = 4
	// The fake OS ignores hints and places everything past the tracked
	// 48-bit range.
	sys.misplace = uintptr(1) << 48
	mgr := NewManager(m, sys, pol, nil)

	_, err := mgr.Reserve(geo.SpaceSize(), 0)
	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 4, sys.releaseCalls, "unusable placements must be released")
	assert.Equal(t, 0, m.Stats().ReservedSpaces)
}

func TestManager_TotalCap(t *testing.T) {
	geo, m, sys, pol := newTestSetup(t)
	pol.TotalCap = 2 * geo.SpaceSize()
	mgr := NewManager(m, sys, pol, nil)

	_, err := mgr.Reserve(geo.SpaceSize(), 0)
	require.NoError(t, err)

	_, err = mgr.Reserve(2*geo.SpaceSize(), 0)
	require.ErrorIs(t, err, ErrCapExceeded)

	_, err = mgr.Reserve(geo.SpaceSize(), 0)
	require.NoError(t, err, "requests inside the cap still succeed")
	assert.Equal(t, pol.TotalCap, mgr.TotalReserved())
}

// TestManager_UpFrontReservation: the first call stakes out one large
// region; later calls are served contiguously from the surplus without
// touching the OS again.
func TestManager_UpFrontReservation(t *testing.T) {
	geo, m, sys, pol := newTestSetup(t)
	ssize := geo.SpaceSize()
	pol.InitialSizes = []uintptr{4 * ssize}
	mgr := NewManager(m, sys, pol, nil)

	r1, err := mgr.Reserve(ssize, 0)
	require.NoError(t, err)
	assert.Equal(t, ssize, r1.Size, "the caller gets what it asked for")
	assert.Equal(t, 4*ssize, mgr.TotalReserved(), "the whole stake-out counts as reserved")
	assert.Equal(t, 1, sys.reserveCalls)
	assert.Equal(t, ssize, sys.committed[r1.Base], "only the served part is committed")

	r2, err := mgr.Reserve(ssize, 0)
	require.NoError(t, err)
	assert.Equal(t, r1.End(), r2.Base, "headroom is handed out contiguously")
	assert.Equal(t, 1, sys.reserveCalls, "no new OS reservation for headroom")

	// The whole staked-out range is already claimed in the map.
	for i := 0; i < 4; i++ {
		assert.Equal(t, space.StateReserved, m.Query(r1.First+space.SpaceID(i)))
	}
}

// TestManager_ConcurrentOverlappingReserves: concurrent requests never end
// up with overlapping ranges, whatever the OS placement does.
func TestManager_ConcurrentOverlappingReserves(t *testing.T) {
	geo, m, sys, pol := newTestSetup(t)
	mgr := NewManager(m, sys, pol, nil)

	const calls = 8
	results := make([]ReservedRange, calls)
	errs := make([]error, calls)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = mgr.Reserve(geo.SpaceSize(), geo.BaseOf(3000))
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < calls; i++ {
		require.NoError(t, errs[i], "call %d", i)
		for j := i + 1; j < calls; j++ {
			overlap := results[i].Base < results[j].End() && results[j].Base < results[i].End()
			assert.False(t, overlap, "ranges %d and %d overlap: %+v vs %+v",
				i, j, results[i], results[j])
		}
	}
	assert.Equal(t, calls, len(sys.committed), "every successful range must be committed")
}
