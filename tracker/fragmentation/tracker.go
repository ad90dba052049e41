// Package fragmentation identifies segments worth relocating for
// compaction: it buckets rented ranges by their start offset and
// nominates the ones sharing an under-filled bucket (spec.md §4.6).
package fragmentation

import (
	"github.com/orizon-lang/suballoc/internal/rangemap"
)

// Segment is the minimal (offset, length) shape the tracker observes.
type Segment struct {
	Offset int
	Length int
}

// Tracker wraps an ordered range-bucket map over [0, capacityElems),
// partitioned into bucketElems-wide buckets (the last may be short).
// Not safe for concurrent use (spec.md §5).
type Tracker struct {
	m *rangemap.Map
}

// New returns a Tracker over [0, capacityElems) with the given bucket width.
func New(capacityElems, bucketElems int) *Tracker {
	return &Tracker{m: rangemap.New(capacityElems, bucketElems)}
}

// TrackRental records a newly rented segment, inserting it into every
// bucket it touches.
func (t *Tracker) TrackRental(seg Segment) {
	t.m.Insert(rangemap.Range{Offset: seg.Offset, Length: seg.Length})
}

// TrackReturn undoes a prior TrackRental of the same segment, removing
// it symmetrically from every bucket it touched.
func (t *Tracker) TrackReturn(seg Segment) {
	t.m.Remove(rangemap.Range{Offset: seg.Offset, Length: seg.Length})
}

// TrackUpdate replaces the entry keyed by seg.Offset with a new length,
// for an in-place resize that doesn't change the segment's start.
func (t *Tracker) TrackUpdate(seg Segment, oldLength int) {
	t.m.Replace(seg.Offset, oldLength, seg.Length)
}

// Fragmented returns every segment originating in a bucket whose fill
// percentage is positive and whose complement is at least minFragPct:
// good candidates to evict-and-rerent somewhere denser.
func (t *Tracker) Fragmented(minFragPct float64) []Segment {
	ranges := t.m.Fragmented(minFragPct)

	out := make([]Segment, len(ranges))
	for i, r := range ranges {
		out[i] = Segment{Offset: r.Offset, Length: r.Length}
	}

	return out
}

// Clear removes every tracked segment.
func (t *Tracker) Clear() {
	t.m.Clear()
}
