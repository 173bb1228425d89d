// Package space classifies pointer-shaped words as in-heap or out-of-heap.
//
// # Overview
//
// A managed runtime tracing live objects must decide, for every candidate
// pointer it encounters, whether the pointer targets runtime-owned memory.
// This package carves the tracked address range into 2^N fixed-size virtual
// spaces and keeps one monotone state per space:
//
//	Unknown --(reservation claims the space)--> Reserved   [terminal]
//	Unknown --(foreign pointer observed)------> Tainted    [terminal]
//
// No edge leaves a terminal state, ever. That monotonicity is what lets
// workers cache resolutions privately and forever.
//
// # Key Types
//
//   - Geometry: the immutable shape (N prefix bits, 2^L-byte spaces)
//   - Map: process-wide table of per-space states, lock-free to read
//   - Cache: one worker's private mirror, at most one global access per id
//   - Classifier: per-worker facade mapping a word to InHeap / OutOfHeap
//
// # Fast Path
//
// Classification is lock-free. A worker's first sight of a space costs one
// atomic load on the global map, plus a single serialized transition if the
// space turns out to be foreign. Every later sight of that space by the
// same worker is a private map hit.
//
// # Growing the Heap
//
// Address space enters the heap through space/reserve, which validates each
// candidate range against the Map (tainted spaces can never be reclaimed)
// and marks whole runs Reserved atomically.
//
// # Thread Safety
//
// Map is safe for any number of concurrent readers and writers. Cache and
// Classifier are single-owner: one per worker, never shared.
package space
