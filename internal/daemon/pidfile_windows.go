//go:build windows
// +build windows

package daemon

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// TriggerSignal is nil: Windows has no user signal, use fetch --local
var TriggerSignal os.Signal

const stillActive = 259

// isProcessRunning checks if a process is running on Windows
func isProcessRunning(pid int) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var exitCode uint32
	if err := windows.GetExitCodeProcess(h, &exitCode); err != nil {
		return false
	}
	return exitCode == stillActive
}

// killProcess terminates a process on Windows
func killProcess(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	if err := process.Kill(); err != nil {
		return fmt.Errorf("failed to kill process %d: %w", pid, err)
	}

	return nil
}

func triggerProcess(pid int) error {
	return fmt.Errorf("%w: process %d", ErrSignalUnsupported, pid)
}
