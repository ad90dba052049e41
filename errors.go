package suballoc

import (
	"errors"
	"fmt"

	"github.com/orizon-lang/suballoc/internal/diag"
)

// Sentinel faults. Compare with errors.Is; a returned error always wraps
// one of these via Fault.Is matching on Code, even though each instance
// carries call-site Context.
var (
	// ErrInvalidArgument reports a precondition violation: non-positive
	// length, non-positive capacity or block length, a block length
	// larger than capacity, or an external buffer too small for the
	// capacity. A nil external buffer is not reported; it selects an
	// internally-allocated buffer.
	ErrInvalidArgument = diag.Sentinel(diag.CategoryArgument, "INVALID_ARGUMENT", "invalid argument")

	// ErrUnknownSegment reports Return or SegmentLength called with a
	// pointer that does not correspond to an occupied run start.
	ErrUnknownSegment = diag.Sentinel(diag.CategorySegment, "UNKNOWN_SEGMENT", "unknown segment")

	// ErrDoubleFree reports Return called on a segment that is known but
	// already free.
	ErrDoubleFree = diag.Sentinel(diag.CategorySegment, "DOUBLE_FREE", "segment already free")

	// ErrUseAfterDispose reports TryRent (as a panic), Return or
	// SegmentLength called on a disposed suballocator.
	ErrUseAfterDispose = diag.Sentinel(diag.CategoryState, "USE_AFTER_DISPOSE", "suballocator disposed")

	// ErrRegistryConflict reports two suballocators attempting to
	// register the same buffer base pointer.
	ErrRegistryConflict = diag.Sentinel(diag.CategoryRegistry, "REGISTRY_CONFLICT", "buffer already registered")
)

func invalidArgument(context map[string]interface{}, format string, args ...interface{}) error {
	f := diag.New(diag.CategoryArgument, "INVALID_ARGUMENT", fmt.Sprintf(format, args...), context)

	return wrapSentinel(f, ErrInvalidArgument)
}

func unknownSegment(ptr uintptr) error {
	f := diag.New(diag.CategorySegment, "UNKNOWN_SEGMENT",
		fmt.Sprintf("no occupied run starts at offset %#x", ptr),
		map[string]interface{}{"ptr": ptr})

	return wrapSentinel(f, ErrUnknownSegment)
}

func doubleFree(ptr uintptr) error {
	f := diag.New(diag.CategorySegment, "DOUBLE_FREE",
		fmt.Sprintf("segment at offset %#x is already free", ptr),
		map[string]interface{}{"ptr": ptr})

	return wrapSentinel(f, ErrDoubleFree)
}

func useAfterDispose(op string) error {
	f := diag.New(diag.CategoryState, "USE_AFTER_DISPOSE",
		fmt.Sprintf("%s called after Dispose", op),
		map[string]interface{}{"op": op})

	return wrapSentinel(f, ErrUseAfterDispose)
}

func registryConflict(base uintptr) error {
	f := diag.New(diag.CategoryRegistry, "REGISTRY_CONFLICT",
		fmt.Sprintf("buffer base %#x already registered", base),
		map[string]interface{}{"base": base})

	return wrapSentinel(f, ErrRegistryConflict)
}

// wrappedFault pairs a concrete Fault with the sentinel it should match
// under errors.Is, without losing the Fault's own message/context via
// fmt.Errorf's %w (which would require exposing *diag.Fault directly).
type wrappedFault struct {
	*diag.Fault
	sentinel *diag.Fault
}

func (w *wrappedFault) Unwrap() error { return w.sentinel }

func wrapSentinel(f *diag.Fault, sentinel *diag.Fault) error {
	return &wrappedFault{Fault: f, sentinel: sentinel}
}

// RequirePositiveLength panics if length <= 0. TryRent's length
// parameter is a precondition, not a soft failure (spec.md §4.1,
// §7: "Throws only on precondition violation"); out-of-memory is
// reported through TryRent's ok return instead.
func RequirePositiveLength(length int) {
	if length <= 0 {
		panic(invalidArgument(map[string]interface{}{"length": length},
			"TryRent length must be positive, got %d", length))
	}
}

// IsUnknownSegment reports whether err is, or wraps, ErrUnknownSegment.
func IsUnknownSegment(err error) bool { return errors.Is(err, ErrUnknownSegment) }

// IsDoubleFree reports whether err is, or wraps, ErrDoubleFree.
func IsDoubleFree(err error) bool { return errors.Is(err, ErrDoubleFree) }
