package space

// SpaceID identifies one virtual space: the top N bits of a tracked address.
type SpaceID uint32

// State is the classification state of one virtual space. Per id the state
// is monotone: Unknown may become Reserved or Tainted, and a terminal state
// never changes again.
type State uint32

const (
	// StateUnknown means no reservation has claimed the space and no foreign
	// pointer into it has been observed yet.
	StateUnknown State = iota

	// StateReserved means the space belongs to the managed heap. Terminal.
	StateReserved

	// StateTainted means a foreign pointer into the space was observed, so
	// the heap may never claim it. Terminal.
	StateTainted
)

// Terminal reports whether the state can never change again.
func (s State) Terminal() bool { return s != StateUnknown }

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateReserved:
		return "reserved"
	case StateTainted:
		return "tainted"
	default:
		return "invalid"
	}
}
