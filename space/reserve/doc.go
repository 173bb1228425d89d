// Package reserve grows the managed heap's address space.
//
// # Overview
//
// The allocator asks Manager.Reserve for more address space whenever the
// heap needs to grow. Each request walks a policy-chosen list of candidate
// base addresses: the OS reservation (without physical backing) is obtained
// first, then validated against the classification map. A range that
// overlaps a tainted space - one where a foreign pointer was already
// observed - can never join the heap, so the candidate is released and the
// walk moves on, bounded by the policy's attempt count.
//
// # Placement
//
// On 64-bit targets candidates start in the middle of the 48-bit address
// range, far from the program image and the platform allocator's usual
// territory, which minimizes the chance that a foreign mapping lands in a
// space the heap will later want. Contiguous growth from the previous
// reservation is always preferred. On 32-bit targets headroom is scarce:
// the policy asks for the lowest available addresses, attempts one large
// up-front reservation, and supports a hard total cap.
//
// # Errors
//
// ErrOSDenied, ErrExhausted and ErrCapExceeded are all final for the
// triggering request and are returned to the allocator, which decides
// whether the failure is fatal to the process or recoverable.
package reserve
