package suballoc

import (
	"unsafe"

	"github.com/google/uuid"
)

// SegmentHandle is an immutable value describing a rented segment: a
// pointer to the owning buffer's base, a pointer to the segment's first
// element, and an element count. It is a borrow of allocator state, not
// an owner — the allocator is the sole owner of the buffer. Disposing
// (returning) a handle twice, or after Clear, is a programming error
// and is never silenced (spec.md §3, §9).
type SegmentHandle struct {
	bufferBase uintptr
	ptr        uintptr
	length     int
	elemSize   uintptr

	// id is an optional debug identifier, populated by WithDebugID, which
	// each policy's Handle method calls when the owning suballocator was
	// opened with EnableDebugIDs. It never
	// participates in I1-I5 and exists purely to let external tooling
	// correlate a handle across log lines.
	id *uuid.UUID
}

// MakeHandle constructs a SegmentHandle. elemSize is the byte size of
// one element, used by Span to compute a byte view.
func MakeHandle(bufferBase, ptr uintptr, length int, elemSize uintptr) SegmentHandle {
	return SegmentHandle{bufferBase: bufferBase, ptr: ptr, length: length, elemSize: elemSize}
}

// Ptr returns the segment's first-element pointer, the value passed to
// Return/SegmentLength and used as the registry lookup key for Owner.
func (h SegmentHandle) Ptr() uintptr { return h.ptr }

// BufferBase returns the owning buffer's base pointer.
func (h SegmentHandle) BufferBase() uintptr { return h.bufferBase }

// Length returns the recorded element count (I3: equals the
// allocator's internally recorded length, which may exceed the
// originally requested length due to block rounding).
func (h SegmentHandle) Length() int { return h.length }

// Span returns a byte-level view of the segment: length*elemSize bytes
// starting at ptr, reinterpreted from the raw address. Callers must
// ensure the owning suballocator is still live; see Owner.
func (h SegmentHandle) Span() []byte {
	n := int(uintptr(h.length) * h.elemSize)
	if n == 0 {
		return nil
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(h.ptr)), n)
}

// ElemAt returns a pointer to the i-th element's first byte, i in
// [0, Length).
func (h SegmentHandle) ElemAt(i int) unsafe.Pointer {
	return unsafe.Pointer(h.ptr + uintptr(i)*h.elemSize)
}

// Owner recovers the handle's owning Suballocator via the registry,
// looking up BufferBase; ok is false if the buffer was never
// registered or has since been disposed.
func (h SegmentHandle) Owner() (Suballocator, bool) {
	return Lookup(h.bufferBase)
}

// Dispose returns the handle to its owner, looked up via the registry.
// It fails with ErrUnknownSegment if the owner cannot be found.
func (h SegmentHandle) Dispose() (int, error) {
	owner, ok := h.Owner()
	if !ok {
		return 0, unknownSegment(h.ptr)
	}

	return owner.Return(h.ptr)
}

// WithDebugID returns a copy of h carrying a freshly generated debug
// UUID. Each policy's Handle method (seqfit.Allocator.Handle,
// buddy.Allocator.Handle, dirfit.Allocator.Handle) calls this when the
// allocator was opened with OpenConfig.EnableDebugIDs, assembling a
// SegmentHandle from TryRent's raw ptr/actualLength for callers that
// want one.
func (h SegmentHandle) WithDebugID() SegmentHandle {
	id := uuid.New()
	h.id = &id

	return h
}

// DebugID returns the handle's debug UUID and whether one was assigned.
func (h SegmentHandle) DebugID() (uuid.UUID, bool) {
	if h.id == nil {
		return uuid.UUID{}, false
	}

	return *h.id, true
}
