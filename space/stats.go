package space

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Stats is a point-in-time snapshot of map activity. Counters are read
// without the transition mutex, so a snapshot taken while workers run is
// internally consistent only per field.
type Stats struct {
	TrackedSpaces  int    // table size, 2^N
	ReservedSpaces int    // spaces currently Reserved
	TaintedSpaces  int    // spaces currently Tainted
	Reservations   uint64 // successful TryReserveRange calls
	Conflicts      uint64 // TryReserveRange calls failed on a claimed id
	TaintRacesLost uint64 // TryTaint slow paths that lost the transition race
}

// UnknownSpaces returns how many spaces are still unresolved.
func (s Stats) UnknownSpaces() int {
	return s.TrackedSpaces - s.ReservedSpaces - s.TaintedSpaces
}

// Stats snapshots the map's counters.
func (m *Map) Stats() Stats {
	return Stats{
		TrackedSpaces:  len(m.cells),
		ReservedSpaces: int(m.stats.reservedSpaces.Load()),
		TaintedSpaces:  int(m.stats.taintedSpaces.Load()),
		Reservations:   m.stats.reservations.Load(),
		Conflicts:      m.stats.conflicts.Load(),
		TaintRacesLost: m.stats.taintRacesLost.Load(),
	}
}

// BuildStatsString streams the snapshot as one JSON object.
func (s Stats) BuildStatsString(writer *jwriter.Writer) {
	obj := writer.Object()
	defer obj.End()

	obj.Name("TrackedSpaces").Int(s.TrackedSpaces)
	obj.Name("ReservedSpaces").Int(s.ReservedSpaces)
	obj.Name("TaintedSpaces").Int(s.TaintedSpaces)
	obj.Name("UnknownSpaces").Int(s.UnknownSpaces())
	obj.Name("Reservations").Int(int(s.Reservations))
	obj.Name("Conflicts").Int(int(s.Conflicts))
	obj.Name("TaintRacesLost").Int(int(s.TaintRacesLost))
}
