package dirfit

import (
	"testing"

	"github.com/orizon-lang/suballoc"
)

func TestReturnAndReuse(t *testing.T) {
	a, err := New(100)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Dispose()

	ptr, actual, ok := a.TryRent(100)
	if !ok || actual != 100 {
		t.Fatalf("initial rent: actual=%d ok=%v", actual, ok)
	}

	if _, err := a.Return(ptr); err != nil {
		t.Fatalf("Return: %v", err)
	}

	if _, _, ok := a.TryRent(101); ok {
		t.Fatalf("rent 101 unexpectedly succeeded over a 100-element buffer")
	}

	if _, actual, ok := a.TryRent(100); !ok || actual != 100 {
		t.Fatalf("re-rent 100: actual=%d ok=%v", actual, ok)
	}
}

func TestFillUntilExhausted(t *testing.T) {
	a, err := New(256)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Dispose()

	used := 0
	for {
		_, actual, ok := a.TryRent(16)
		if !ok {
			break
		}

		used += actual

		if used > 256 {
			t.Fatalf("used %d exceeds capacity 256", used)
		}
	}

	if used != 256 {
		t.Fatalf("used = %d, want 256 (exact quantization)", used)
	}

	if free := a.Stats().FreeLength; free != 0 {
		t.Fatalf("FreeLength = %d, want 0", free)
	}
}

func TestDoubleFreeAndUnknownSegment(t *testing.T) {
	a, err := New(32)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Dispose()

	ptr, _, ok := a.TryRent(8)
	if !ok {
		t.Fatalf("rent failed")
	}

	if _, err := a.Return(ptr); err != nil {
		t.Fatalf("first Return: %v", err)
	}

	if _, err := a.Return(ptr); err == nil {
		t.Fatalf("second Return unexpectedly succeeded")
	}

	if _, err := a.Return(a.Base() + 1); err == nil {
		t.Fatalf("misaligned Return unexpectedly succeeded")
	}
}

// TestBidirectionalLinkInvariant exercises spec.md §8's link-consistency
// property: for every run-start index i, IndexEntry[i+blockCount]'s
// blockCountPrev equals blockCount, whenever a successor exists.
func TestBidirectionalLinkInvariant(t *testing.T) {
	a, err := New(512)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Dispose()

	var ptrs []uintptr
	for i := 0; i < 12; i++ {
		ptr, _, ok := a.TryRent(7)
		if ok {
			ptrs = append(ptrs, ptr)
		}
	}

	for i, ptr := range ptrs {
		if i%2 == 0 {
			if _, err := a.Return(ptr); err != nil {
				t.Fatalf("Return: %v", err)
			}
		}
	}

	for i := 0; i < a.blockCount; {
		entry := a.index.At(i)
		if entry.BlockCount <= 0 {
			break
		}

		next := i + int(entry.BlockCount)
		if next < a.blockCount {
			succ := a.index.At(next)
			if int(succ.BlockCountPrev) != int(entry.BlockCount) {
				t.Fatalf("link invariant broken at %d: successor.BlockCountPrev=%d, want %d",
					i, succ.BlockCountPrev, entry.BlockCount)
			}
		}

		i = next
	}
}

func TestCustomStrategyAlwaysBackward(t *testing.T) {
	backward := StrategyFunc(func(balance, headOffset, prevDirection float64) bool { return false })

	a, err := NewWithStrategy(64, backward)
	if err != nil {
		t.Fatalf("NewWithStrategy: %v", err)
	}
	defer a.Dispose()

	ptr, actual, ok := a.TryRent(8)
	if !ok {
		t.Fatalf("rent failed")
	}

	if actual != 8 {
		t.Fatalf("actualLength = %d, want 8", actual)
	}

	// A backward-only strategy over an initially-empty buffer must land
	// the allocation at the high end.
	wantOffset := uintptr(64 - 8)
	if ptr-a.Base() != wantOffset {
		t.Fatalf("ptr offset = %d, want %d", ptr-a.Base(), wantOffset)
	}
}

func TestHandleDebugID(t *testing.T) {
	a, err := New(64, suballoc.WithDebugIDs(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Dispose()

	ptr, actual, ok := a.TryRent(8)
	if !ok {
		t.Fatalf("rent failed")
	}

	if _, ok := a.Handle(ptr, actual).DebugID(); !ok {
		t.Fatalf("expected a debug ID when opened with WithDebugIDs(true)")
	}
}
