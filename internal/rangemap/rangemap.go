// Package rangemap provides the ordered range-bucket map that backs
// FragmentationTracker: a bucketed index over block_index -> (length,
// value) with per-bucket fill statistics, ordered so buckets can be
// iterated ascending for free. It is backed by github.com/tidwall/btree
// rather than a hand-rolled tree, since the only operations this index
// needs — bucket lookup by index and in-order bucket iteration — are
// exactly what an ordered B-tree gives for O(log buckets).
package rangemap

import "github.com/tidwall/btree"

// Range is a half-open element range [Offset, Offset+Length).
type Range struct {
	Offset int
	Length int
}

// End returns the exclusive end of the range.
func (r Range) End() int { return r.Offset + r.Length }

type bucket struct {
	// fill is the sum of lengths of every range touching this bucket
	// (spec: inserted "into every bucket the range touches"); a range
	// longer than one bucket contributes its full length to each
	// bucket it spans, an intentional over-count that approximates
	// local density rather than computing exact overlap.
	fill int

	// originating holds only the ranges whose start lies in this
	// bucket, keyed by offset, since that's the set a fragmentation
	// query reports.
	originating map[int]Range
}

// Map partitions [0, capacityElems) into equal-length buckets (the
// last may be short) and indexes ranges rented against that space.
type Map struct {
	capacityElems int
	bucketElems   int
	buckets       btree.Map[int, *bucket]
}

// New returns a Map over [0, capacityElems) with the given bucket width.
func New(capacityElems, bucketElems int) *Map {
	if bucketElems <= 0 {
		bucketElems = 1
	}

	return &Map{capacityElems: capacityElems, bucketElems: bucketElems}
}

// bucketIndex returns the bucket offset belongs to.
func (m *Map) bucketIndex(offset int) int {
	return offset / m.bucketElems
}

// bucketSpan returns the element width of bucket idx (short for the
// trailing bucket when capacityElems isn't a multiple of bucketElems).
func (m *Map) bucketSpan(idx int) int {
	start := idx * m.bucketElems
	end := start + m.bucketElems

	if end > m.capacityElems {
		end = m.capacityElems
	}

	if end <= start {
		return 0
	}

	return end - start
}

func (m *Map) getOrCreate(idx int) *bucket {
	b, ok := m.buckets.Get(idx)
	if !ok {
		b = &bucket{originating: make(map[int]Range)}
		m.buckets.Set(idx, b)
	}

	return b
}

// touchedBuckets returns the inclusive [first, last] bucket indices r spans.
func (m *Map) touchedBuckets(r Range) (first, last int) {
	first = m.bucketIndex(r.Offset)
	if r.Length <= 0 {
		return first, first
	}

	last = m.bucketIndex(r.End() - 1)

	return first, last
}

// Insert records r: its length is added to the fill of every bucket it
// touches, and r itself is recorded as originating in the bucket
// containing r.Offset.
func (m *Map) Insert(r Range) {
	first, last := m.touchedBuckets(r)
	for idx := first; idx <= last; idx++ {
		m.getOrCreate(idx).fill += r.Length
	}

	m.getOrCreate(first).originating[r.Offset] = r
}

// Remove undoes a prior Insert(r) symmetrically. r must match exactly
// what was inserted (same Offset and Length).
func (m *Map) Remove(r Range) {
	first, last := m.touchedBuckets(r)
	for idx := first; idx <= last; idx++ {
		if b, ok := m.buckets.Get(idx); ok {
			b.fill -= r.Length
		}
	}

	if b, ok := m.buckets.Get(first); ok {
		delete(b.originating, r.Offset)
	}
}

// Replace swaps a previously-inserted range (identified by its offset
// and old length) for a new length at the same offset, implementing
// trackUpdate by removing the old entry and inserting the new one.
func (m *Map) Replace(offset, oldLength, newLength int) {
	m.Remove(Range{Offset: offset, Length: oldLength})
	m.Insert(Range{Offset: offset, Length: newLength})
}

// Fragmented returns every range originating in a bucket whose fill
// percentage is positive and whose complement (1 - fillPct) is at
// least minFragPct: a bucket with no rentals at all is not
// "fragmented", it's simply untouched.
func (m *Map) Fragmented(minFragPct float64) []Range {
	var out []Range

	m.buckets.Scan(func(idx int, b *bucket) bool {
		span := m.bucketSpan(idx)
		if span <= 0 || b.fill <= 0 {
			return true
		}

		fillPct := float64(b.fill) / float64(span)
		if fillPct > 0 && (1-fillPct) >= minFragPct {
			for _, r := range b.originating {
				out = append(out, r)
			}
		}

		return true
	})

	return out
}

// Clear removes every tracked range.
func (m *Map) Clear() {
	m.buckets = btree.Map[int, *bucket]{}
}
