package space

import "errors"

var (
	// ErrConflict indicates that a reservation range overlapped a space that
	// is no longer Unknown. A tainted space in the range means a foreign
	// pointer was already observed there; the range must never be reclaimed.
	ErrConflict = errors.New("space: reservation range conflicts with a claimed space")

	// ErrBadRange indicates an id range that lies outside the state table.
	ErrBadRange = errors.New("space: id range out of bounds")
)
