// Package buddy implements the buddy suballocator: power-of-two
// splitting and merging with a doubly-linked free list per order,
// stored as flat-array indices rather than pointers so the whole index
// lives in one unmanaged slab (spec.md §4.3, §9).
package buddy

import (
	"math/bits"
	"unsafe"

	"github.com/orizon-lang/suballoc"
	"github.com/orizon-lang/suballoc/internal/bigarray"
	"github.com/orizon-lang/suballoc/internal/bitset"
)

// NoneIndex is the sentinel "no link" value for free-list indices.
const NoneIndex int32 = 1<<31 - 1

// BlockHeader describes the block starting at its own index, whether it
// is currently a live block (Valid) and, if free, its position in the
// order-Order free list.
type BlockHeader struct {
	Valid    bool
	Occupied bool
	Order    int8
	PrevFree int32
	NextFree int32
}

// Allocator is the buddy suballocator.
type Allocator struct {
	buf     []byte
	release func()
	base    uintptr

	blockElems int
	elemSize   int

	// blockCount is the true, caller-requested block count (no
	// power-of-two padding). Capacities that aren't themselves a power
	// of two are seeded at reset as one free run per set bit of
	// blockCount's binary representation, the standard buddy technique
	// for non-power-of-two capacities (spec.md §4.3, §9).
	blockCount int
	maxOrder   int
	debugIDs   bool

	headers  *bigarray.Array[BlockHeader]
	freeHead []int32 // index by order, len maxOrder+1
	flags    bitset.Word64

	usedBlocks  int
	allocations int
	disposed    bool
}

func ceilLog2(n int) int {
	if n <= 1 {
		return 0
	}

	return bits.Len(uint(n - 1))
}

// New opens a buddy suballocator over exactly capacityElems elements
// (rounded only to a whole number of blocks, never to a power of two).
// A block count that isn't itself a power of two is decomposed into one
// free run per set bit at reset, per spec.md §4.3.
func New(capacityElems int, opts ...suballoc.Option) (*Allocator, error) {
	cfg := suballoc.NewOpenConfig(capacityElems, opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	blockCount := cfg.BlockCount()
	maxOrder := bits.Len(uint(blockCount)) - 1

	buf, release, err := cfg.AcquireBuffer()
	if err != nil {
		return nil, err
	}

	a := &Allocator{
		buf:        buf,
		release:    release,
		blockElems: cfg.BlockElems,
		elemSize:   cfg.ElemSize(),
		blockCount: blockCount,
		maxOrder:   maxOrder,
		debugIDs:   cfg.EnableDebugIDs,
		headers:    bigarray.New[BlockHeader](blockCount),
		freeHead:   make([]int32, maxOrder+1),
	}

	if len(buf) > 0 {
		a.base = uintptr(unsafe.Pointer(&buf[0]))
	}

	a.resetFreeLists()

	if err := suballoc.Register(a.base, a); err != nil {
		if a.release != nil {
			a.release()
		}

		return nil, err
	}

	return a, nil
}

// resetFreeLists seeds the free lists from the binary decomposition of
// blockCount: one free run per set bit, laid out from the
// highest-order run to the lowest. Each run's offset is, by
// construction, a sum of strictly larger powers of two and so is itself
// a multiple of the run's own size — exactly the alignment the
// XOR-based buddy-index arithmetic in Return requires to stay within
// the run and never cross into its neighbor.
func (a *Allocator) resetFreeLists() {
	a.headers.Reset()

	for k := range a.freeHead {
		a.freeHead[k] = NoneIndex
	}

	a.flags = 0
	a.usedBlocks = 0
	a.allocations = 0

	offset := 0
	for order := a.maxOrder; order >= 0; order-- {
		if a.blockCount&(1<<uint(order)) == 0 {
			continue
		}

		h := a.headers.At(offset)
		*h = BlockHeader{Valid: true, Occupied: false, Order: int8(order), PrevFree: NoneIndex, NextFree: NoneIndex}
		a.freeHead[order] = int32(offset)
		a.flags = a.flags.Set(uint(order))

		offset += 1 << uint(order)
	}
}

func (a *Allocator) pushFree(order, idx int) {
	h := a.headers.At(idx)
	*h = BlockHeader{Valid: true, Occupied: false, Order: int8(order), PrevFree: NoneIndex, NextFree: a.freeHead[order]}

	if a.freeHead[order] != NoneIndex {
		a.headers.At(int(a.freeHead[order])).PrevFree = int32(idx)
	}

	a.freeHead[order] = int32(idx)
	a.flags = a.flags.Set(uint(order))
}

func (a *Allocator) unlinkFree(order, idx int) {
	h := a.headers.At(idx)
	prev, next := h.PrevFree, h.NextFree

	if prev != NoneIndex {
		a.headers.At(int(prev)).NextFree = next
	} else {
		a.freeHead[order] = next
	}

	if next != NoneIndex {
		a.headers.At(int(next)).PrevFree = prev
	}

	if a.freeHead[order] == NoneIndex {
		a.flags = a.flags.Clear(uint(order))
	}
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

	needBlocksRaw := (length + a.blockElems - 1) / a.blockElems
	needOrder := ceilLog2(needBlocksRaw)

	if needOrder > a.maxOrder {
		return 0, 0, false
	}

	mask := a.flags.MaskFrom(uint(needOrder))
	if mask == 0 {
		return 0, 0, false
	}

	pickOrder := mask.TrailingZeros()
	blockIndex := int(a.freeHead[pickOrder])
	a.unlinkFree(pickOrder, blockIndex)

	for pickOrder > needOrder {
		pickOrder--
		upperHalf := blockIndex + (1 << pickOrder)
		a.pushFree(pickOrder, upperHalf)
	}

	h := a.headers.At(blockIndex)
	*h = BlockHeader{Valid: true, Occupied: true, Order: int8(needOrder)}

	needBlocks := 1 << needOrder
	a.usedBlocks += needBlocks
	a.allocations++

	return a.addressOf(blockIndex), needBlocks * a.blockElems, true
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

	h := a.headers.At(blockIndex)
	if !h.Valid {
		return 0, suballoc.ErrUnknownSegment
	}

	if !h.Occupied {
		return 0, suballoc.ErrDoubleFree
	}

	order := int(h.Order)
	reclaimed := (1 << order) * a.blockElems
	h.Valid = false
	a.usedBlocks -= 1 << order

	for order < a.maxOrder {
		buddyIndex := blockIndex ^ (1 << order)
		if buddyIndex < 0 || buddyIndex >= a.blockCount {
			break
		}

		bh := a.headers.At(buddyIndex)
		if !bh.Valid || bh.Occupied || int(bh.Order) != order {
			break
		}

		a.unlinkFree(order, buddyIndex)

		if buddyIndex < blockIndex {
			blockIndex = buddyIndex
		}

		order++
	}

	a.pushFree(order, blockIndex)

	return reclaimed, nil
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

	h := a.headers.At(blockIndex)
	if !h.Valid || !h.Occupied {
		return 0, suballoc.ErrUnknownSegment
	}

	return (1 << int(h.Order)) * a.blockElems, nil
}

// Clear implements suballoc.Suballocator.
func (a *Allocator) Clear() {
	a.resetFreeLists()
}

// Enumerate implements suballoc.Suballocator.
func (a *Allocator) Enumerate(yield func(ptr uintptr, length int) bool) {
	for i := 0; i < a.blockCount; {
		h := a.headers.At(i)
		if !h.Valid {
			break
		}

		blocks := 1 << int(h.Order)

		if h.Occupied {
			if !yield(a.addressOf(i), blocks*a.blockElems) {
				return
			}
		}

		i += blocks
	}
}

// Stats implements suballoc.Suballocator.
func (a *Allocator) Stats() suballoc.Stats {
	capacity := a.blockCount * a.blockElems
	used := a.usedBlocks * a.blockElems
	free := capacity - used

	largestFreeBlocks := 0
	if a.flags != 0 {
		largestFreeBlocks = 1 << (bits.Len64(uint64(a.flags)) - 1)
	}

	frag := 0.0
	if free > 0 {
		frag = 1 - float64(largestFreeBlocks*a.blockElems)/float64(free)
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

// MinBufferBlocks returns the minimum block count that guarantees no
// defragmentation is ever needed for maxCount simultaneously-live
// items, implementing the Cholleti bound
// ceil(maxCount * (floor(log2(maxCount)) + 1) / 2) from spec.md §4.3.
func MinBufferBlocks(maxCount int) int {
	if maxCount <= 0 {
		return 0
	}

	floorLog2 := bits.Len(uint(maxCount)) - 1

	return (maxCount*(floorLog2+1) + 1) / 2
}
