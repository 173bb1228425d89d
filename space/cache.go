package space

// stateSource is the slice of Map a Cache depends on. Narrowed to an
// interface so tests can count and script global-map traffic.
type stateSource interface {
	Query(id SpaceID) State
	TryTaint(id SpaceID) bool
}

// Cache is one worker's private mirror of the global Map. It holds only
// resolved (terminal) states, so a hit never touches shared memory, and a
// given id is resolved against the global map at most once per worker:
// after the first sight the answer is cached forever, which monotonicity
// makes safe.
//
// A Cache is owned by exactly one worker and must not be shared. It needs
// no locking for the same reason.
type Cache struct {
	global stateSource
	states map[SpaceID]State

	// misses counts global resolutions; taints counts the subset that found
	// the space Unknown and tainted it (first foreign sighting).
	misses uint64
	taints uint64
}

// NewCache returns an empty cache for one worker over the global map.
func NewCache(m *Map) *Cache {
	return newCache(m)
}

func newCache(global stateSource) *Cache {
	return &Cache{
		global: global,
		states: make(map[SpaceID]State),
	}
}

// Query resolves id to a terminal state. On a local hit nothing global is
// touched. On the first sight of an id the global map is consulted; if the
// space is still Unknown there, observing a pointer into it is proof that
// it is foreign - no reservation has claimed it - so it gets tainted, by
// this call or by whichever racer got there first. The resolved terminal
// state is cached and returned.
func (c *Cache) Query(id SpaceID) State {
	if s, ok := c.states[id]; ok {
		return s
	}

	c.misses++
	s := c.global.Query(id)
	if s == StateUnknown {
		c.taints++
		if c.global.TryTaint(id) {
			s = StateTainted
		} else {
			// Someone resolved the space between our load and the taint
			// attempt - a racing taint or a racing reservation. Either way
			// it is terminal now.
			s = c.global.Query(id)
		}
	}
	c.states[id] = s
	return s
}

// Misses returns how many ids this worker has resolved against the global
// map. With the at-most-once guarantee this equals the number of distinct
// ids ever queried through this cache.
func (c *Cache) Misses() uint64 { return c.misses }

// Taints returns how many of this worker's resolutions tainted a space.
func (c *Cache) Taints() uint64 { return c.taints }

// Len returns the number of cached ids.
func (c *Cache) Len() int { return len(c.states) }
