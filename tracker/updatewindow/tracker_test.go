package updatewindow

import "testing"

func TestCombiningDenseSegments(t *testing.T) {
	tr := New(0.51)

	offset := uintptr(0)
	for length := 1; length <= 255; length++ {
		tr.TrackRental(Segment{Start: offset, Length: length})
		offset += uintptr(float64(length) * 1.5)
	}

	result := tr.Build()

	if result.Count != 1 {
		t.Fatalf("Count = %d, want 1 (every pair dense enough to combine)", result.Count)
	}
}

func TestNonCombiningSparseSegments(t *testing.T) {
	tr := New(0.51)

	offset := uintptr(0)
	for length := 1; length <= 255; length++ {
		tr.TrackRental(Segment{Start: offset, Length: length})
		offset += uintptr(4 * length)
	}

	result := tr.Build()

	if result.Count != 255 {
		t.Fatalf("Count = %d, want 255 (no pair dense enough to combine)", result.Count)
	}
}

func TestRentThenImmediateReturnCancels(t *testing.T) {
	tr := New(0.5)

	tr.TrackRental(Segment{Start: 0, Length: 10})
	tr.TrackRental(Segment{Start: 100, Length: 5})
	tr.TrackReturn(Segment{Start: 100, Length: 5})

	result := tr.Build()

	if result.Count != 1 {
		t.Fatalf("Count = %d, want 1 (the immediate rent+return pair should cancel)", result.Count)
	}

	if result.Windows[0].Start != 0 || result.Windows[0].Length != 10 {
		t.Fatalf("surviving window = %+v, want {0 10}", result.Windows[0])
	}
}

func TestReturnNotMatchingTailIsRecorded(t *testing.T) {
	tr := New(0.5)

	tr.TrackRental(Segment{Start: 0, Length: 10})
	tr.TrackRental(Segment{Start: 100, Length: 5})
	// Returns a segment other than the immediately-preceding rental: it
	// must still be recorded as an observed window, not silently dropped.
	tr.TrackReturn(Segment{Start: 0, Length: 10})

	result := tr.Build()

	if result.Count != 2 {
		t.Fatalf("Count = %d, want 2", result.Count)
	}
}

func TestDerivedTotalsAndSpread(t *testing.T) {
	tr := New(1.0) // require perfect density: nothing combines unless adjacent

	tr.TrackRental(Segment{Start: 0, Length: 10})
	tr.TrackRental(Segment{Start: 10, Length: 10})
	tr.TrackRental(Segment{Start: 100, Length: 5})

	result := tr.Build()

	if result.Count != 2 {
		t.Fatalf("Count = %d, want 2", result.Count)
	}

	if result.TotalLength != 25 {
		t.Fatalf("TotalLength = %d, want 25", result.TotalLength)
	}

	if result.SpreadLength != 105 {
		t.Fatalf("SpreadLength = %d, want 105", result.SpreadLength)
	}
}

func TestClearResetsPendingObservations(t *testing.T) {
	tr := New(0.5)
	tr.TrackRental(Segment{Start: 0, Length: 10})
	tr.Clear()

	result := tr.Build()
	if result.Count != 0 {
		t.Fatalf("Count after Clear = %d, want 0", result.Count)
	}
}
