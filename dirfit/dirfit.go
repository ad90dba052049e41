// Package dirfit implements the directional-fit suballocator: a
// bidirectional sweep that picks forward or backward per rent based on
// a pluggable DirectionStrategy, biased by a running free-block balance
// and the cursor's offset from the buffer's center (spec.md §4.4).
package dirfit

import (
	"math"
	"unsafe"

	"github.com/orizon-lang/suballoc"
	"github.com/orizon-lang/suballoc/internal/bigarray"
)

// IndexEntry describes the run starting at its own block index, linked
// in both directions: the next run starts at index+BlockCount, and the
// previous run starts at index-BlockCountPrev. The bidirectional link
// is what lets Rent and Return walk either way without a full scan.
type IndexEntry struct {
	Occupied       bool
	BlockCount     int32
	BlockCountPrev int32
}

// DirectionStrategy decides whether a rent should sweep forward (true)
// or backward (false), given three inputs normalized to roughly
// [-1, 1]: the current free-block balance (positive means more free
// space lies ahead of the cursor than behind it), the cursor's offset
// from the buffer's center, and the direction chosen by the previous
// rent (+1 forward, -1 backward).
type DirectionStrategy interface {
	Decide(freeBalance, headOffset, prevDirection float64) bool
}

// StrategyFunc adapts a plain function to DirectionStrategy.
type StrategyFunc func(freeBalance, headOffset, prevDirection float64) bool

// Decide implements DirectionStrategy.
func (f StrategyFunc) Decide(freeBalance, headOffset, prevDirection float64) bool {
	return f(freeBalance, headOffset, prevDirection)
}

// DefaultStrategy weighs the running balance most heavily, ignores raw
// head offset, and gives a mild nudge toward repeating the previous
// direction (locality: a run of same-direction rents tends to keep
// finding free space on that side).
var DefaultStrategy DirectionStrategy = StrategyFunc(func(balance, headOffset, prevDirection float64) bool {
	return balance*1.0+headOffset*0.0+prevDirection*0.3 >= 0
})

// Allocator is the directional-fit suballocator.
type Allocator struct {
	buf     []byte
	release func()
	base    uintptr

	blockElems int
	elemSize   int
	blockCount int
	debugIDs   bool

	index    *bigarray.Array[IndexEntry]
	strategy DirectionStrategy

	cursor           int
	freeBlockBalance int
	prevDirection    float64 // +1 forward, -1 backward

	usedBlocks  int
	allocations int
	disposed    bool
}

// New opens a directional-fit suballocator using DefaultStrategy.
func New(capacityElems int, opts ...suballoc.Option) (*Allocator, error) {
	return NewWithStrategy(capacityElems, DefaultStrategy, opts...)
}

// NewWithStrategy opens a directional-fit suballocator with a custom
// DirectionStrategy, letting a caller substitute its own forward/backward
// heuristic (spec.md §4.4's "pluggable DirectionStrategy").
func NewWithStrategy(capacityElems int, strategy DirectionStrategy, opts ...suballoc.Option) (*Allocator, error) {
	cfg := suballoc.NewOpenConfig(capacityElems, opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if strategy == nil {
		strategy = DefaultStrategy
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
		strategy:   strategy,
	}

	if len(buf) > 0 {
		a.base = uintptr(unsafe.Pointer(&buf[0]))
	}

	a.reset()

	if err := suballoc.Register(a.base, a); err != nil {
		if a.release != nil {
			a.release()
		}

		return nil, err
	}

	return a, nil
}

// reset lays one free run across the whole index, chunked into
// math.MaxInt32-block runs if blockCount overflows the 31-bit field,
// each chunk correctly back-linked to its predecessor.
func (a *Allocator) reset() {
	a.index.Reset()

	pos, prevLen := 0, 0
	for pos < a.blockCount {
		chunk := a.blockCount - pos
		if chunk > math.MaxInt32 {
			chunk = math.MaxInt32
		}

		*a.index.At(pos) = IndexEntry{Occupied: false, BlockCount: int32(chunk), BlockCountPrev: int32(prevLen)}
		prevLen = chunk
		pos += chunk
	}

	a.cursor = 0
	a.freeBlockBalance = a.blockCount // everything lies ahead of cursor 0
	a.prevDirection = 1
	a.usedBlocks = 0
	a.allocations = 0
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

func clamp11(v float64) float64 {
	if v > 1 {
		return 1
	}

	if v < -1 {
		return -1
	}

	return v
}

// chooseDirection normalizes the allocator's running state and asks the
// strategy to pick forward (true) or backward (false).
func (a *Allocator) chooseDirection() bool {
	balanceNorm := clamp11(float64(a.freeBlockBalance) / float64(a.blockCount))

	center := float64(a.blockCount) / 2
	headOffsetNorm := clamp11((float64(a.cursor) - center) / center)

	return a.strategy.Decide(balanceNorm, headOffsetNorm, a.prevDirection)
}

// TryRent implements suballoc.Suballocator.
func (a *Allocator) TryRent(length int) (ptr uintptr, actualLength int, ok bool) {
	suballoc.RequirePositiveLength(length)

	if a.disposed {
		panic(suballoc.ErrUseAfterDispose)
	}

	needBlocks := (length + a.blockElems - 1) / a.blockElems

	forward := a.chooseDirection()

	snapshotCursor := a.cursor
	snapshotBalance := a.freeBlockBalance
	turnarounds := 0

	i := a.cursor

	for {
		entry := a.index.At(i)

		if !entry.Occupied && int(entry.BlockCount) >= needBlocks {
			hitIndex := i
			hitLen := int(entry.BlockCount)
			a.commitRent(hitIndex, hitLen, needBlocks, forward)
			a.prevDirection = direction1(forward)

			return a.addressOf(occupiedStart(hitIndex, hitLen, needBlocks, forward)), needBlocks * a.blockElems, true
		}

		var next int

		if !entry.Occupied {
			runLen := int(entry.BlockCount)
			if forward {
				a.freeBlockBalance -= 2 * runLen
				next = i + runLen
			} else {
				a.freeBlockBalance += 2 * runLen
				next = i - int(entry.BlockCountPrev)
			}
		} else {
			if forward {
				next = i + int(entry.BlockCount)
			} else {
				next = i - int(entry.BlockCountPrev)
			}
		}

		fellOff := (forward && next >= a.blockCount) || (!forward && i == 0)
		if fellOff {
			if turnarounds >= 2 {
				a.cursor = snapshotCursor
				a.freeBlockBalance = snapshotBalance

				return 0, 0, false
			}

			turnarounds++
			a.cursor = snapshotCursor
			a.freeBlockBalance = snapshotBalance
			forward = !forward
			i = snapshotCursor

			continue
		}

		i = next
	}
}

func direction1(forward bool) float64 {
	if forward {
		return 1
	}

	return -1
}

// occupiedStart returns the block index the allocation actually starts
// at, given the hit run and direction: forward allocations take the
// low end, backward allocations take the high end.
func occupiedStart(hitIndex, hitLen, needBlocks int, forward bool) int {
	if forward || hitLen == needBlocks {
		return hitIndex
	}

	return hitIndex + (hitLen - needBlocks)
}

// commitRent splits the hit free run (if larger than needed) and marks
// the allocated portion occupied, repairing the bidirectional links on
// both sides of the split, then advances the cursor past the allocation
// in the direction of travel. A forward allocation that ends at the
// buffer's end leaves the cursor on the allocated run itself.
func (a *Allocator) commitRent(hitIndex, hitLen, needBlocks int, forward bool) {
	succPos := hitIndex + hitLen // original successor run start, if any

	if forward {
		occStart := hitIndex

		if hitLen > needBlocks {
			trailingStart := occStart + needBlocks
			*a.index.At(trailingStart) = IndexEntry{
				Occupied:       false,
				BlockCount:     int32(hitLen - needBlocks),
				BlockCountPrev: int32(needBlocks),
			}

			if succPos < a.blockCount {
				a.index.At(succPos).BlockCountPrev = int32(hitLen - needBlocks)
			}
		}

		head := a.index.At(occStart)
		head.Occupied = true
		head.BlockCount = int32(needBlocks)

		a.cursor = occStart + needBlocks
		if a.cursor >= a.blockCount {
			a.cursor = occStart
		}

		a.freeBlockBalance -= needBlocks
	} else {
		occStart := hitIndex + (hitLen - needBlocks)

		if hitLen > needBlocks {
			lead := a.index.At(hitIndex)
			lead.BlockCount = int32(hitLen - needBlocks)

			*a.index.At(occStart) = IndexEntry{
				Occupied:       true,
				BlockCount:     int32(needBlocks),
				BlockCountPrev: int32(hitLen - needBlocks),
			}
		} else {
			entry := a.index.At(hitIndex)
			entry.Occupied = true
		}

		if succPos < a.blockCount {
			a.index.At(succPos).BlockCountPrev = int32(needBlocks)
		}

		a.cursor = occStart - int(a.index.At(occStart).BlockCountPrev)
		a.freeBlockBalance += needBlocks
	}

	a.usedBlocks += needBlocks
	a.allocations++
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

	header := a.index.At(blockIndex)
	if header.BlockCount <= 0 {
		return 0, suballoc.ErrUnknownSegment
	}

	if !header.Occupied {
		return 0, suballoc.ErrDoubleFree
	}

	length := int(header.BlockCount) * a.blockElems
	header.Occupied = false
	a.usedBlocks -= int(header.BlockCount)

	if blockIndex > a.cursor {
		a.freeBlockBalance++
	} else if blockIndex < a.cursor {
		a.freeBlockBalance--
	}

	a.mergeAround(blockIndex)

	return length, nil
}

// mergeAround opportunistically coalesces the just-freed run at
// blockIndex with its free forward and backward neighbors, then, if the
// merged range engulfs the cursor, snaps the cursor to the range start
// and folds in the resulting balance shift.
func (a *Allocator) mergeAround(blockIndex int) {
	mergedStart := blockIndex
	mergedLen := int(a.index.At(blockIndex).BlockCount)

	for {
		nextPos := mergedStart + mergedLen
		if nextPos >= a.blockCount {
			break
		}

		next := a.index.At(nextPos)
		if next.Occupied || next.BlockCount <= 0 {
			break
		}

		if mergedLen+int(next.BlockCount) > math.MaxInt32 {
			break
		}

		mergedLen += int(next.BlockCount)
	}

	for mergedStart > 0 {
		prevLen := int(a.index.At(mergedStart).BlockCountPrev)
		if prevLen <= 0 {
			break
		}

		prevStart := mergedStart - prevLen
		prev := a.index.At(prevStart)

		if prev.Occupied {
			break
		}

		if mergedLen+prevLen > math.MaxInt32 {
			break
		}

		mergedStart = prevStart
		mergedLen += prevLen
	}

	merged := a.index.At(mergedStart)
	merged.Occupied = false
	merged.BlockCount = int32(mergedLen)

	succPos := mergedStart + mergedLen
	if succPos < a.blockCount {
		a.index.At(succPos).BlockCountPrev = int32(mergedLen)
	}

	if a.cursor >= mergedStart && a.cursor < mergedStart+mergedLen {
		shift := a.cursor - mergedStart
		a.freeBlockBalance += shift << 1
		a.cursor = mergedStart
	}
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
	a.reset()
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
