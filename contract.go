package suballoc

import "github.com/orizon-lang/suballoc/internal/pin"

// Suballocator is the contract shared by every suballocator policy
// (seqfit.Allocator, buddy.Allocator, dirfit.Allocator). It rents and
// returns fixed-size-element runs from a single buffer established at
// construction; see the package doc for the single-owner-task
// scheduling model this contract assumes.
//
// Implementations must uphold, for every sequence of calls:
//
//	I1 Exclusivity:  no two live segments overlap by even one element.
//	I2 Containment:  every live segment lies within [buffer, buffer+N).
//	I3 Length-faithfulness: a handle's length equals the allocator's
//	                 recorded length, which may exceed the requested
//	                 length due to block rounding.
//	I4 Used+Free == CapacityLength, in elements.
//	I5 Returning an unknown or already-returned segment is an error,
//	                 never a silent success.
type Suballocator interface {
	// TryRent rents length elements, rounded up to a block multiple.
	// length must be >= 1; ok is false (no error, no state change) when
	// no free run of sufficient size exists.
	TryRent(length int) (ptr uintptr, actualLength int, ok bool)

	// Return reclaims the segment starting at ptr and reports the
	// number of elements reclaimed (the recorded, block-rounded
	// length). Fails with ErrUnknownSegment or ErrDoubleFree.
	Return(ptr uintptr) (lengthReclaimed int, err error)

	// SegmentLength returns the recorded element count for an occupied
	// run starting at ptr, or fails with ErrUnknownSegment.
	SegmentLength(ptr uintptr) (int, error)

	// Clear resets the allocator to fully-free. Outstanding handles
	// become invalid.
	Clear()

	// Enumerate calls yield for every occupied segment in ascending
	// address order, reflecting exactly the state after the latest
	// call that returned. Enumerate stops early if yield returns false.
	// Any mutating call invalidates an in-progress enumeration.
	Enumerate(yield func(ptr uintptr, length int) bool)

	// Stats reports read-only capacity/usage statistics.
	Stats() Stats

	// Base returns the buffer base pointer this instance owns, used as
	// the registry key.
	Base() uintptr

	// Dispose deregisters the suballocator and invalidates it for
	// further use. Afterwards TryRent panics with ErrUseAfterDispose and
	// Return and SegmentLength return it; Clear, Enumerate and Stats make
	// no disposal check.
	Dispose()
}

// Stats reports read-only capacity and usage statistics, in elements.
type Stats struct {
	CapacityLength int
	UsedLength     int
	FreeLength     int
	Allocations    int

	// Fragmentation estimates 1 - (largest contiguous free run /
	// FreeLength), a cheap local signal for whether consulting a
	// FragmentationTracker is worthwhile. It is 0 when FreeLength is 0.
	// This is read-only and never drives automatic defragmentation.
	Fragmentation float64
}

// OpenConfig configures a suballocator at construction.
type OpenConfig struct {
	// CapacityElems is the buffer length N, in elements. Required.
	CapacityElems int

	// BlockElems is the allocation quantum blockLen, in elements.
	// NewOpenConfig sets it to 1; Validate rejects zero or negative values.
	BlockElems int

	// ElemSizeBytes is the byte size of one element, the compile-time
	// parameter spec.md §3 calls out ("element size is a compile-time
	// parameter of the suballocator"). Defaults to 1 (byte elements)
	// when zero.
	ElemSizeBytes int

	// ExternalBuffer, when non-nil, is a caller-owned region the
	// suballocator indexes but never allocates or frees; the caller is
	// contractually excluded from touching it for the suballocator's
	// lifetime. Its length must be >= TotalBlockElems() * ElemSize()
	// bytes; Validate checks this. A nil ExternalBuffer is not an error:
	// it selects an internally-allocated buffer.
	ExternalBuffer []byte

	// EnableDebugIDs makes each policy's Handle method attach a debug
	// UUID to the SegmentHandle it assembles; off by default to keep
	// the hot path allocation-free.
	EnableDebugIDs bool

	// PinInternalBuffer requests that an internally-allocated buffer
	// (ExternalBuffer == nil) be acquired through internal/pin instead
	// of a plain make([]byte, ...), so it is locked against paging.
	// Ignored when ExternalBuffer is set, since pinning a caller-owned
	// buffer is the caller's responsibility.
	PinInternalBuffer bool
}

// Option mutates an OpenConfig; functional-options style, matching the
// teacher's allocator.Option pattern.
type Option func(*OpenConfig)

// WithBlockElems sets the allocation quantum.
func WithBlockElems(n int) Option {
	return func(c *OpenConfig) { c.BlockElems = n }
}

// WithExternalBuffer supplies a caller-owned backing buffer.
func WithExternalBuffer(buf []byte) Option {
	return func(c *OpenConfig) { c.ExternalBuffer = buf }
}

// WithDebugIDs enables per-handle debug UUIDs.
func WithDebugIDs(enabled bool) Option {
	return func(c *OpenConfig) { c.EnableDebugIDs = enabled }
}

// WithPinnedBuffer requests page-pinning for an internally-allocated buffer.
func WithPinnedBuffer(enabled bool) Option {
	return func(c *OpenConfig) { c.PinInternalBuffer = enabled }
}

// WithElemSize sets the byte size of one element.
func WithElemSize(bytes int) Option {
	return func(c *OpenConfig) { c.ElemSizeBytes = bytes }
}

// NewOpenConfig builds an OpenConfig from capacity and options, the way
// every policy constructor is expected to.
func NewOpenConfig(capacityElems int, opts ...Option) *OpenConfig {
	c := &OpenConfig{
		CapacityElems: capacityElems,
		BlockElems:    1,
		ElemSizeBytes: 1,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Validate checks the precondition set common to every policy
// (spec.md §7 InvalidArgument): non-positive capacity, non-positive
// block length, block length larger than capacity, and an external
// buffer too small for the block-rounded capacity.
func (c *OpenConfig) Validate() error {
	if c.CapacityElems <= 0 {
		return invalidArgument(map[string]interface{}{"capacityElems": c.CapacityElems},
			"capacity must be positive, got %d", c.CapacityElems)
	}

	if c.BlockElems <= 0 {
		return invalidArgument(map[string]interface{}{"blockElems": c.BlockElems},
			"block length must be positive, got %d", c.BlockElems)
	}

	if c.BlockElems > c.CapacityElems {
		return invalidArgument(map[string]interface{}{"blockElems": c.BlockElems, "capacityElems": c.CapacityElems},
			"block length %d exceeds capacity %d", c.BlockElems, c.CapacityElems)
	}

	needed := c.TotalBlockElems() * c.elemSize()
	if c.ExternalBuffer != nil && len(c.ExternalBuffer) < needed {
		return invalidArgument(map[string]interface{}{"bufLen": len(c.ExternalBuffer), "needed": needed},
			"external buffer of %d bytes is too small for %d block-rounded elements at %d bytes each",
			len(c.ExternalBuffer), c.TotalBlockElems(), c.elemSize())
	}

	return nil
}

// BlockCount returns ceil(CapacityElems / BlockElems).
func (c *OpenConfig) BlockCount() int {
	return (c.CapacityElems + c.BlockElems - 1) / c.BlockElems
}

// TotalBlockElems returns BlockCount()*BlockElems: CapacityElems rounded
// up to a whole number of blocks. Policies size their backing buffer to
// this, not to the raw CapacityElems, so the last block is always fully
// addressable even when CapacityElems isn't itself a block multiple.
func (c *OpenConfig) TotalBlockElems() int {
	return c.BlockCount() * c.BlockElems
}

// ElemSize returns the effective byte size of one element (at least 1).
func (c *OpenConfig) ElemSize() int { return c.elemSize() }

func (c *OpenConfig) elemSize() int {
	if c.ElemSizeBytes <= 0 {
		return 1
	}

	return c.ElemSizeBytes
}

// AcquireBuffer returns the backing byte buffer for this config: the
// caller-supplied ExternalBuffer if set, or a freshly acquired
// (optionally pinned) internal buffer otherwise. release must be called
// from Dispose exactly once; it is nil when ExternalBuffer was used,
// since the caller owns that buffer's lifetime.
func (c *OpenConfig) AcquireBuffer() (buf []byte, release func(), err error) {
	if c.ExternalBuffer != nil {
		return c.ExternalBuffer, nil, nil
	}

	acquired, err := pin.Acquire(c.TotalBlockElems()*c.elemSize(), c.PinInternalBuffer)
	if err != nil {
		return nil, nil, err
	}

	return acquired.Bytes, acquired.Release, nil
}
