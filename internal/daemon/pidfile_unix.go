//go:build !windows
// +build !windows

package daemon

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// TriggerSignal is delivered by Trigger and handled by a running daemon
var TriggerSignal os.Signal = unix.SIGUSR1

// isProcessRunning checks if a process is running on Unix systems
func isProcessRunning(pid int) bool {
	// Signal 0 checks existence without delivering anything
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// killProcess sends a termination signal to a process on Unix systems
func killProcess(pid int) error {
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}
	return nil
}

func triggerProcess(pid int) error {
	if err := unix.Kill(pid, unix.SIGUSR1); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}
	return nil
}
