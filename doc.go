// Package suballoc provides variable-size suballocators that carve a
// single fixed buffer, caller-supplied or allocated internally, into
// rented sub-segments.
//
// It exists for buffers that a general-purpose allocator handles badly:
// a fixed region the caller already owns (device-shared memory, a
// mapped ring buffer, a GPU staging area), where churn would otherwise
// pressure the garbage collector, and where downstream consumers need
// to know exactly which bytes changed so they can re-sync a minimal
// region instead of the whole buffer.
//
// Three suballocator policies share the Suballocator contract defined
// in this package: package seqfit (first-fit forward sweep), package
// buddy (power-of-two splitting), and package dirfit (bidirectional
// sweep with a pluggable direction heuristic). Two trackers observe
// rental/return traffic as a side channel without participating in the
// allocation decision: package tracker/updatewindow coalesces touched
// addresses into a minimal set of update windows, and package
// tracker/fragmentation nominates under-filled regions for relocation.
//
// The library is single-threaded per instance: each suballocator and
// tracker must be used by one goroutine at a time, and none of them
// locks internally. The one piece of shared mutable state is the
// process-wide buffer registry in this package, safe for concurrent use.
package suballoc
