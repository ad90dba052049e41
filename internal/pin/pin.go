// Package pin acquires a backing buffer for an internally-allocated
// suballocator and, where the platform allows, pins it against paging
// so a long-lived, externally-visible buffer (spec.md §1: "device-shared
// memory") keeps a stable address and stays resident for as long as the
// suballocator lives.
package pin

import "log"

// Buffer is an acquired, possibly-pinned backing region.
type Buffer struct {
	Bytes  []byte
	Pinned bool

	release func()
}

// Release returns the buffer to the OS, unlocking it first if it was
// pinned. Safe to call once; a second call is a no-op.
func (b *Buffer) Release() {
	if b.release != nil {
		b.release()
		b.release = nil
	}
}

// Acquire returns an n-byte buffer. When requestPin is true the
// platform-specific implementation attempts to lock it resident;
// failure to pin is logged and never fatal — spec.md's pinning
// requirement is about keeping pointers valid and resident in the
// common case, not a hard platform guarantee.
func Acquire(n int, requestPin bool) (*Buffer, error) {
	if !requestPin {
		return &Buffer{Bytes: make([]byte, n)}, nil
	}

	buf, err := acquirePinned(n)
	if err != nil {
		log.Printf("suballoc/internal/pin: pin unavailable, falling back to unpinned buffer: %v", err)

		return &Buffer{Bytes: make([]byte, n)}, nil
	}

	return buf, nil
}
