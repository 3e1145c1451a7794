// Package daemon tracks the background scheduler process through a PID file
// and delivers control signals to it.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoDaemon indicates no daemon process is recorded or alive
var ErrNoDaemon = errors.New("no running daemon")

// ErrSignalUnsupported indicates the platform cannot deliver the control signal
var ErrSignalUnsupported = errors.New("control signals are not supported on this platform")

// PIDFile manages the daemon process ID file
type PIDFile struct {
	path string
}

// NewPIDFile creates a new PID file manager
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// DefaultPIDPath returns the default PID file path
func DefaultPIDPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}

	pidDir := filepath.Join(configDir, "nuupdater")
	if err := os.MkdirAll(pidDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create PID directory: %w", err)
	}

	return filepath.Join(pidDir, "daemon.pid"), nil
}

// Path returns the PID file location
func (p *PIDFile) Path() string {
	return p.path
}

// Write writes the current process ID to the PID file
func (p *PIDFile) Write() error {
	if _, err := os.Stat(p.path); err == nil {
		if running, _ := p.IsRunning(); running {
			return fmt.Errorf("daemon is already running (PID file exists: %s)", p.path)
		}
		// Stale PID file, remove it
		os.Remove(p.path)
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}

	content := fmt.Sprintf("%d\n", os.Getpid())
	if err := os.WriteFile(p.path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	return nil
}

// Read reads the PID from the PID file
func (p *PIDFile) Read() (int, error) {
	content, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: PID file does not exist: %s", ErrNoDaemon, p.path)
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pidStr := strings.TrimSpace(string(content))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in file: %q", pidStr)
	}

	return pid, nil
}

// Remove removes the PID file
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// IsRunning checks if the process in the PID file is running
func (p *PIDFile) IsRunning() (bool, error) {
	pid, err := p.Read()
	if err != nil {
		return false, err
	}

	return isProcessRunning(pid), nil
}

// running returns the recorded PID if that process is alive
func (p *PIDFile) running() (int, error) {
	pid, err := p.Read()
	if err != nil {
		return 0, err
	}
	if !isProcessRunning(pid) {
		return 0, fmt.Errorf("%w: process %d is gone (stale PID file %s)", ErrNoDaemon, pid, p.path)
	}
	return pid, nil
}

// Kill asks the recorded daemon to shut down
func (p *PIDFile) Kill() error {
	pid, err := p.running()
	if err != nil {
		return err
	}

	return killProcess(pid)
}

// Trigger asks the recorded daemon to run a manual fetch cycle
func (p *PIDFile) Trigger() error {
	pid, err := p.running()
	if err != nil {
		return err
	}

	return triggerProcess(pid)
}
