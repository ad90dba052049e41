package bitset

import "testing"

func TestSetGetClear(t *testing.T) {
	s := New(130)

	s.Set(0)
	s.Set(64)
	s.Set(129)

	for _, i := range []int{0, 64, 129} {
		if !s.Get(i) {
			t.Errorf("Get(%d) = false, want true", i)
		}
	}

	if s.Get(1) {
		t.Errorf("Get(1) = true, want false")
	}

	s.Clear(64)
	if s.Get(64) {
		t.Errorf("Get(64) after Clear = true, want false")
	}

	if got := s.PopCount(); got != 2 {
		t.Errorf("PopCount = %d, want 2", got)
	}
}

func TestAnyAndClearAll(t *testing.T) {
	s := New(10)
	if s.Any() {
		t.Errorf("Any() on empty set = true, want false")
	}

	s.Set(3)
	if !s.Any() {
		t.Errorf("Any() after Set = false, want true")
	}

	s.ClearAll()
	if s.Any() {
		t.Errorf("Any() after ClearAll = true, want false")
	}
}

func TestWord64MaskFromAndTrailingZeros(t *testing.T) {
	var w Word64
	w = w.Set(2).Set(5).Set(9)

	masked := w.MaskFrom(4)
	if masked.TrailingZeros() != 5 {
		t.Errorf("TrailingZeros(MaskFrom(4)) = %d, want 5", masked.TrailingZeros())
	}

	if w.MaskFrom(10) != 0 {
		t.Errorf("MaskFrom(10) should be empty, orders 2/5/9 are all below 10")
	}

	w = w.Clear(5)
	if w.Has(5) {
		t.Errorf("Has(5) after Clear = true, want false")
	}
}
