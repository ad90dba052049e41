package fragmentation

import "testing"

func TestNoFragmentationBeforeAnyReturn(t *testing.T) {
	tr := New(1024, 10)

	for offset := 100; offset < 1000; offset++ {
		tr.TrackRental(Segment{Offset: offset, Length: 1})
	}

	if got := tr.Fragmented(0.1); len(got) != 0 {
		t.Fatalf("Fragmented before any removal = %d segments, want 0", len(got))
	}
}

func TestReturnOneLeavesBucketStillDense(t *testing.T) {
	tr := New(1024, 10)

	for offset := 100; offset < 1000; offset++ {
		tr.TrackRental(Segment{Offset: offset, Length: 1})
	}

	// Every bucket in [100,1000) is fully packed (10 of 10 elements).
	// Returning one element drops that bucket to 9/10 = 0.9 fill, whose
	// complement (1-0.9, just under 0.1 in floating point) is well short
	// of a 0.2 threshold.
	tr.TrackReturn(Segment{Offset: 105, Length: 1})

	if got := tr.Fragmented(0.2); len(got) != 0 {
		t.Fatalf("Fragmented(0.2) after a single-element return = %d, want 0", len(got))
	}
}

func TestReturnTwoInSameBucketCrossesThreshold(t *testing.T) {
	tr := New(1024, 10)

	for offset := 100; offset < 1000; offset++ {
		tr.TrackRental(Segment{Offset: offset, Length: 1})
	}

	tr.TrackReturn(Segment{Offset: 105, Length: 1})
	tr.TrackReturn(Segment{Offset: 106, Length: 1})

	got := tr.Fragmented(0.1)
	if len(got) != 8 {
		t.Fatalf("Fragmented(0.1) after two same-bucket returns = %d, want 8 (remaining originators in bucket 10)", len(got))
	}
}

func TestUpdateReplacesOriginatingEntry(t *testing.T) {
	tr := New(100, 10)

	tr.TrackRental(Segment{Offset: 2, Length: 1})
	tr.TrackUpdate(Segment{Offset: 2, Length: 6}, 1)

	got := tr.Fragmented(0.3)
	if len(got) != 1 || got[0].Length != 6 {
		t.Fatalf("Fragmented after TrackUpdate = %+v, want one segment of length 6", got)
	}
}

func TestClearRemovesEverything(t *testing.T) {
	tr := New(100, 10)
	tr.TrackRental(Segment{Offset: 0, Length: 5})

	tr.Clear()

	if got := tr.Fragmented(0.01); len(got) != 0 {
		t.Fatalf("Fragmented after Clear = %v, want empty", got)
	}
}
