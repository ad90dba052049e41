//go:build !unix

package pin

import "errors"

// acquirePinned has no portable implementation outside unix; Acquire
// falls back to an unpinned buffer and logs why.
func acquirePinned(n int) (*Buffer, error) {
	return nil, errors.New("buffer pinning is not implemented on this platform")
}
