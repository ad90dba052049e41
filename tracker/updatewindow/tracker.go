// Package updatewindow coalesces observed rental/return/update traffic
// into a minimal sorted set of non-overlapping update windows, suitable
// for shipping the "which bytes changed" signal over a slow channel
// (spec.md §4.5).
package updatewindow

import (
	"sort"

	"github.com/oklog/ulid/v2"
)

// Segment is the minimal (start, length) shape the tracker observes;
// build one from a suballoc.SegmentHandle's Ptr and Length accessors.
type Segment struct {
	Start  uintptr
	Length int
}

// Window is a half-open element range [Start, Start+Length) reported as
// changed.
type Window struct {
	Start  uintptr
	Length int
}

// End returns the window's exclusive end.
func (w Window) End() uintptr { return w.Start + uintptr(w.Length) }

// UpdateWindows is the result of a Build call.
type UpdateWindows struct {
	BatchID      ulid.ULID
	Windows      []Window
	TotalLength  int
	SpreadLength int
	Count        int
}

// Tracker accumulates observed segments and coalesces them into update
// windows on demand. Not safe for concurrent use (spec.md §5: one
// logical task owns a tracker at a time).
type Tracker struct {
	minFillPct float64
	observed   []Segment
}

// New constructs a Tracker configured with the combinability threshold
// minFillPct ∈ [0, 1].
func New(minFillPct float64) *Tracker {
	return &Tracker{minFillPct: minFillPct}
}

// TrackRental records a newly rented segment.
func (t *Tracker) TrackRental(seg Segment) {
	t.observed = append(t.observed, seg)
}

// TrackReturn records a returned segment. If it exactly matches the
// most recently observed entry (same start and length) and that entry
// is still pending, the pair cancels — the "rent then immediately
// return within a batch" case (spec.md §4.5 step 3) — rather than
// appending a new entry.
func (t *Tracker) TrackReturn(seg Segment) {
	if n := len(t.observed); n > 0 {
		tail := t.observed[n-1]
		if tail.Start == seg.Start && tail.Length == seg.Length {
			t.observed = t.observed[:n-1]
			return
		}
	}

	t.observed = append(t.observed, seg)
}

// TrackUpdate records a segment whose contents changed without a
// rental/return boundary (e.g. an in-place resize).
func (t *Tracker) TrackUpdate(seg Segment) {
	t.observed = append(t.observed, seg)
}

// Clear discards all pending observations.
func (t *Tracker) Clear() {
	t.observed = t.observed[:0]
}

// Build stable-sorts the observed segments by start and coalesces
// combinable neighbors, transitively, into a minimal covering set of
// windows (spec.md §4.5).
func (t *Tracker) Build() UpdateWindows {
	sorted := make([]Segment, len(t.observed))
	copy(sorted, t.observed)

	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var windows []Window

	for _, seg := range sorted {
		if len(windows) == 0 {
			windows = append(windows, Window{Start: seg.Start, Length: seg.Length})
			continue
		}

		tail := &windows[len(windows)-1]

		span := int(seg.Start-tail.Start) + seg.Length
		if span <= 0 {
			windows = append(windows, Window{Start: seg.Start, Length: seg.Length})
			continue
		}

		ratio := float64(tail.Length+seg.Length) / float64(span)
		if ratio >= t.minFillPct {
			segEnd := seg.Start + uintptr(seg.Length)
			newEnd := tail.End()
			if segEnd > newEnd {
				newEnd = segEnd
			}

			tail.Length = int(newEnd - tail.Start)
		} else {
			windows = append(windows, Window{Start: seg.Start, Length: seg.Length})
		}
	}

	result := UpdateWindows{
		BatchID: ulid.Make(),
		Windows: windows,
		Count:   len(windows),
	}

	for _, w := range windows {
		result.TotalLength += w.Length
	}

	if len(windows) > 0 {
		result.SpreadLength = int(windows[len(windows)-1].End() - windows[0].Start)
	}

	return result
}
