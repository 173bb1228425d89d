package space

// Verdict is the outcome of classifying one pointer-shaped word.
type Verdict uint8

const (
	// OutOfHeap means the word points into memory the runtime does not own.
	// The tracer must treat it as opaque.
	OutOfHeap Verdict = iota

	// InHeap means the word points into a reserved managed-heap space.
	InHeap
)

func (v Verdict) String() string {
	switch v {
	case OutOfHeap:
		return "out-of-heap"
	case InHeap:
		return "in-heap"
	default:
		return "invalid"
	}
}

// Classifier is the hot-path facade the tracer calls on every candidate
// pointer word. One Classifier belongs to one worker: it wraps that
// worker's Cache, so repeat sightings of a space cost a private map hit.
//
// The caller is responsible for pointer-shape filtering (alignment, tag
// bits); Classify assumes the word already looks like a pointer.
type Classifier struct {
	geo   Geometry
	cache *Cache
}

// NewClassifier returns a classifier for one worker over the global map.
func NewClassifier(m *Map) *Classifier {
	return &Classifier{
		geo:   m.Geometry(),
		cache: NewCache(m),
	}
}

// Classify decides whether word points into the managed heap. It always
// returns one of the two verdicts and never errors: words beyond the
// tracked address range are OutOfHeap without touching any shared state,
// and everything else resolves through the worker cache.
func (c *Classifier) Classify(word uintptr) Verdict {
	id, ok := c.geo.SpaceID(word)
	if !ok {
		return OutOfHeap
	}
	if c.cache.Query(id) == StateReserved {
		return InHeap
	}
	return OutOfHeap
}

// Cache exposes the worker cache, mainly for instrumentation.
func (c *Classifier) Cache() *Cache { return c.cache }
