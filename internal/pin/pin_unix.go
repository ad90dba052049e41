//go:build unix

package pin

import (
	"fmt"
	"log"

	"golang.org/x/sys/unix"
)

// acquirePinned maps an anonymous, private region and locks it
// resident with mlock, mirroring the teacher's raw-syscall idiom in
// internal/runtime/asyncio/zerocopy_unix_file.go (there for sendfile,
// here for mmap/mlock).
func acquirePinned(n int) (*Buffer, error) {
	if n <= 0 {
		return &Buffer{Bytes: nil}, nil
	}

	data, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", n, err)
	}

	pinned := true
	if err := unix.Mlock(data); err != nil {
		// Best-effort: an unlocked mapping is still a valid buffer, just
		// not guaranteed resident. RLIMIT_MEMLOCK commonly blocks this
		// for unprivileged processes.
		log.Printf("suballoc/internal/pin: mlock failed, buffer left unpinned: %v", err)
		pinned = false
	}

	release := func() {
		if pinned {
			_ = unix.Munlock(data)
		}
		_ = unix.Munmap(data)
	}

	return &Buffer{Bytes: data, Pinned: pinned, release: release}, nil
}
