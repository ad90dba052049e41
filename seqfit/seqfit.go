// Package seqfit implements the sequential-fit (forward-sweep)
// suballocator: a first-fit, cursor-biased scan over an implicit
// singly-linked run list (spec.md §4.2).
package seqfit

import (
	"math"
	"unsafe"

	"github.com/orizon-lang/suballoc"
	"github.com/orizon-lang/suballoc/internal/bigarray"
)

// IndexEntry describes the run starting at its own block index: the
// index of the entry equals the block offset of the run start, and the
// next run starts at index+BlockCount. Mirrors spec.md §3's
// IndexEntry{occupied, blockCount: u31}; Go's int32 supplies that width.
type IndexEntry struct {
	Occupied   bool
	BlockCount int32
}

// Allocator is the sequential-fit suballocator.
type Allocator struct {
	buf     []byte
	release func()
	base    uintptr

	blockElems int
	elemSize   int
	blockCount int
	debugIDs   bool

	index *bigarray.Array[IndexEntry]

	lastIndex   int // roving cursor, the locality heuristic from spec.md §4.2
	usedBlocks  int
	allocations int
	disposed    bool
}

// New opens a sequential-fit suballocator over capacityElems elements.
func New(capacityElems int, opts ...suballoc.Option) (*Allocator, error) {
	cfg := suballoc.NewOpenConfig(capacityElems, opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	buf, release, err := cfg.AcquireBuffer()
	if err != nil {
		return nil, err
	}

	a := &Allocator{
		buf:        buf,
		release:    release,
		blockElems: cfg.BlockElems,
		elemSize:   cfg.ElemSize(),
		blockCount: cfg.BlockCount(),
		debugIDs:   cfg.EnableDebugIDs,
		index:      bigarray.New[IndexEntry](cfg.BlockCount()),
	}

	if len(buf) > 0 {
		a.base = uintptr(unsafe.Pointer(&buf[0]))
	}

	a.initFreeChain()

	if err := suballoc.Register(a.base, a); err != nil {
		if a.release != nil {
			a.release()
		}

		return nil, err
	}

	return a, nil
}

// initFreeChain lays one free run across the whole index, segmented
// into math.MaxInt32-block chunks if blockCount overflows the 31-bit
// field (spec.md §4.2).
func (a *Allocator) initFreeChain() {
	pos := 0
	for pos < a.blockCount {
		chunk := a.blockCount - pos
		if chunk > math.MaxInt32 {
			chunk = math.MaxInt32
		}

		*a.index.At(pos) = IndexEntry{Occupied: false, BlockCount: int32(chunk)}
		pos += chunk
	}
}

func (a *Allocator) advance(i, runBlocks int) int {
	next := i + runBlocks
	if next >= a.blockCount {
		return 0
	}

	return next
}

func (a *Allocator) addressOf(blockIndex int) uintptr {
	return a.base + uintptr(blockIndex*a.blockElems*a.elemSize)
}

func (a *Allocator) blockIndexOf(ptr uintptr) (int, bool) {
	if ptr < a.base {
		return 0, false
	}

	offsetBytes := ptr - a.base
	if offsetBytes%uintptr(a.elemSize) != 0 {
		return 0, false
	}

	offsetElems := int(offsetBytes / uintptr(a.elemSize))
	if offsetElems%a.blockElems != 0 {
		return 0, false
	}

	blockIndex := offsetElems / a.blockElems
	if blockIndex < 0 || blockIndex >= a.blockCount {
		return 0, false
	}

	return blockIndex, true
}

// TryRent implements suballoc.Suballocator.
func (a *Allocator) TryRent(length int) (ptr uintptr, actualLength int, ok bool) {
	suballoc.RequirePositiveLength(length)

	if a.disposed {
		panic(suballoc.ErrUseAfterDispose)
	}

	needBlocks := (length + a.blockElems - 1) / a.blockElems

	start := a.lastIndex
	i := start

	for {
		entry := a.index.At(i)

		if entry.Occupied {
			next := a.advance(i, int(entry.BlockCount))
			if next == start {
				return 0, 0, false
			}

			i = next

			continue
		}

		// Opportunistically coalesce forward until we reach needBlocks,
		// hit an occupied run, or reach the end of the buffer.
		runLen := int(entry.BlockCount)
		j := i + runLen

		for runLen < needBlocks && j < a.blockCount {
			next := a.index.At(j)
			if next.Occupied || next.BlockCount <= 0 {
				break
			}

			runLen += int(next.BlockCount)
			j += int(next.BlockCount)
		}

		if runLen >= needBlocks {
			if runLen > needBlocks {
				remainderStart := i + needBlocks
				*a.index.At(remainderStart) = IndexEntry{Occupied: false, BlockCount: int32(runLen - needBlocks)}
			}

			entry.BlockCount = int32(needBlocks)
			entry.Occupied = true

			a.lastIndex = i
			a.usedBlocks += needBlocks
			a.allocations++

			return a.addressOf(i), needBlocks * a.blockElems, true
		}

		next := a.advance(i, int(entry.BlockCount))
		if next == start {
			return 0, 0, false
		}

		i = next
	}
}

// Return implements suballoc.Suballocator.
func (a *Allocator) Return(ptr uintptr) (int, error) {
	if a.disposed {
		return 0, suballoc.ErrUseAfterDispose
	}

	blockIndex, ok := a.blockIndexOf(ptr)
	if !ok {
		return 0, suballoc.ErrUnknownSegment
	}

	entry := a.index.At(blockIndex)
	if entry.BlockCount <= 0 {
		return 0, suballoc.ErrUnknownSegment
	}

	if !entry.Occupied {
		return 0, suballoc.ErrDoubleFree
	}

	length := int(entry.BlockCount) * a.blockElems
	entry.Occupied = false
	a.usedBlocks -= int(entry.BlockCount)

	return length, nil
}

// SegmentLength implements suballoc.Suballocator.
func (a *Allocator) SegmentLength(ptr uintptr) (int, error) {
	if a.disposed {
		return 0, suballoc.ErrUseAfterDispose
	}

	blockIndex, ok := a.blockIndexOf(ptr)
	if !ok {
		return 0, suballoc.ErrUnknownSegment
	}

	entry := a.index.At(blockIndex)
	if entry.BlockCount <= 0 || !entry.Occupied {
		return 0, suballoc.ErrUnknownSegment
	}

	return int(entry.BlockCount) * a.blockElems, nil
}

// Clear implements suballoc.Suballocator.
func (a *Allocator) Clear() {
	a.index.Reset()
	a.initFreeChain()
	a.lastIndex = 0
	a.usedBlocks = 0
	a.allocations = 0
}

// Enumerate implements suballoc.Suballocator.
func (a *Allocator) Enumerate(yield func(ptr uintptr, length int) bool) {
	for i := 0; i < a.blockCount; {
		entry := a.index.At(i)
		if entry.BlockCount <= 0 {
			break
		}

		if entry.Occupied {
			if !yield(a.addressOf(i), int(entry.BlockCount)*a.blockElems) {
				return
			}
		}

		i += int(entry.BlockCount)
	}
}

// Stats implements suballoc.Suballocator.
func (a *Allocator) Stats() suballoc.Stats {
	capacity := a.blockCount * a.blockElems
	used := a.usedBlocks * a.blockElems
	free := capacity - used

	largestFree := 0

	for i := 0; i < a.blockCount; {
		entry := a.index.At(i)
		if entry.BlockCount <= 0 {
			break
		}

		if !entry.Occupied && int(entry.BlockCount) > largestFree {
			largestFree = int(entry.BlockCount)
		}

		i += int(entry.BlockCount)
	}

	frag := 0.0
	if free > 0 {
		frag = 1 - float64(largestFree*a.blockElems)/float64(free)
	}

	return suballoc.Stats{
		CapacityLength: capacity,
		UsedLength:     used,
		FreeLength:     free,
		Allocations:    a.allocations,
		Fragmentation:  frag,
	}
}

// Base implements suballoc.Suballocator.
func (a *Allocator) Base() uintptr { return a.base }

// Handle assembles a SegmentHandle for a segment returned by TryRent,
// attaching a debug UUID when this allocator was opened with
// suballoc.WithDebugIDs.
func (a *Allocator) Handle(ptr uintptr, length int) suballoc.SegmentHandle {
	h := suballoc.MakeHandle(a.base, ptr, length, uintptr(a.elemSize))
	if a.debugIDs {
		h = h.WithDebugID()
	}

	return h
}

// Dispose implements suballoc.Suballocator.
func (a *Allocator) Dispose() {
	suballoc.Deregister(a.base)

	if a.release != nil {
		a.release()
	}

	a.disposed = true
}
