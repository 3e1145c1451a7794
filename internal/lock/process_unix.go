//go:build !windows

package lock

import (
	"errors"

	"golang.org/x/sys/unix"
)

// processExists checks pid with signal 0. EPERM means the holder is alive
// but owned by another user.
func processExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
