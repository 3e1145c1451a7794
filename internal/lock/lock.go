// Package lock provides a cross-process advisory lock file guarding writes
// to one output path.
package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// Suffix is appended to the guarded path to name its lock file
	Suffix = ".nuupdater.lock"

	// DefaultStaleTimeout only applies to holders on other hosts
	DefaultStaleTimeout = 30 * time.Minute

	// DefaultPollInterval is the retry period of AcquireContext
	DefaultPollInterval = 50 * time.Millisecond
)

// LockInfo records who holds the lock
type LockInfo struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartTime time.Time `json:"start_time"`
	Owner     string    `json:"owner,omitempty"`
}

// FileLock guards one path. A FileLock value is not safe for concurrent use;
// create one per writer.
type FileLock struct {
	lockPath     string
	staleTimeout time.Duration
	info         *LockInfo
}

// ForPath returns a lock guarding target; the lock file sits next to it
func ForPath(target string) (*FileLock, error) {
	if target == "" {
		return nil, fmt.Errorf("lock target cannot be empty")
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &FileLock{
		lockPath:     filepath.Join(dir, "."+filepath.Base(target)+Suffix),
		staleTimeout: DefaultStaleTimeout,
	}, nil
}

// Path returns the lock file path
func (l *FileLock) Path() string {
	return l.lockPath
}

// SetStaleTimeout sets the age after which a foreign-host lock is ignored
func (l *FileLock) SetStaleTimeout(d time.Duration) {
	l.staleTimeout = d
}

// Acquire takes the lock for owner or returns a *LockError naming the holder.
// Acquiring a lock this instance already holds only updates the owner.
func (l *FileLock) Acquire(owner string) error {
	if existing, err := l.readLockInfo(); err == nil && l.heldByThisInstance(existing) {
		existing.Owner = owner
		if err := l.writeLockInfo(existing); err != nil {
			return err
		}
		l.info.Owner = owner
		return nil
	} else if err == nil {
		if !l.isStale(existing) {
			return &LockError{Holder: existing, Reason: "lock is held by another process"}
		}
		if err := os.Remove(l.lockPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale lock: %w", err)
		}
	}

	hostname, _ := os.Hostname()
	info := &LockInfo{
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartTime: time.Now(),
		Owner:     owner,
	}

	// O_EXCL makes creation the single point of arbitration
	file, err := os.OpenFile(l.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			holder, readErr := l.readLockInfo()
			if readErr != nil {
				return &LockError{Reason: "lock acquired by another process during acquisition"}
			}
			return &LockError{Holder: holder, Reason: "lock acquired by another process during acquisition"}
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(info); err != nil {
		os.Remove(l.lockPath)
		return fmt.Errorf("failed to write lock info: %w", err)
	}

	l.info = info
	return nil
}

// AcquireContext retries Acquire every poll until it succeeds, a non-lock
// error occurs, or ctx is done
func (l *FileLock) AcquireContext(ctx context.Context, owner string, poll time.Duration) error {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		err := l.Acquire(owner)
		if err == nil || !IsLockError(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ctx.Err(), err)
		case <-ticker.C:
		}
	}
}

// Release removes the lock file if this instance still holds it
func (l *FileLock) Release() error {
	if l.info == nil {
		return nil
	}
	defer func() { l.info = nil }()

	existing, err := l.readLockInfo()
	if err != nil {
		return nil // already gone
	}
	if !l.heldByThisInstance(existing) {
		return fmt.Errorf("lock was taken over by PID %d", existing.PID)
	}
	if err := os.Remove(l.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// IsLocked reports whether a live holder exists
func (l *FileLock) IsLocked() bool {
	info, err := l.readLockInfo()
	return err == nil && !l.isStale(info)
}

// GetHolder returns the live holder
func (l *FileLock) GetHolder() (*LockInfo, error) {
	info, err := l.readLockInfo()
	if err != nil {
		return nil, err
	}
	if l.isStale(info) {
		return nil, fmt.Errorf("lock is stale")
	}
	return info, nil
}

// ForceRelease removes the lock file regardless of holder
func (l *FileLock) ForceRelease() error {
	if err := os.Remove(l.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to force remove lock: %w", err)
	}
	l.info = nil
	return nil
}

func (l *FileLock) readLockInfo() (*LockInfo, error) {
	data, err := os.ReadFile(l.lockPath)
	if err != nil {
		return nil, err
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("invalid lock file format: %w", err)
	}
	return &info, nil
}

func (l *FileLock) writeLockInfo(info *LockInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return os.WriteFile(l.lockPath, data, 0644)
}

// isStale: a same-host lock is stale only when its process is gone; a
// foreign-host lock after staleTimeout
func (l *FileLock) isStale(info *LockInfo) bool {
	hostname, _ := os.Hostname()
	if info.Hostname == hostname {
		return !processExists(info.PID)
	}
	return time.Since(info.StartTime) > l.staleTimeout
}

func (l *FileLock) heldByThisInstance(info *LockInfo) bool {
	if l.info == nil {
		return false
	}
	hostname, _ := os.Hostname()
	return info.PID == os.Getpid() &&
		info.Hostname == hostname &&
		l.info.StartTime.Equal(info.StartTime)
}

// LockError is returned when another holder owns the lock
type LockError struct {
	Holder *LockInfo
	Reason string
}

func (e *LockError) Error() string {
	if e.Holder != nil {
		return fmt.Sprintf("cannot acquire lock: %s (held by PID %d on %s since %s, owner: %s)",
			e.Reason,
			e.Holder.PID,
			e.Holder.Hostname,
			e.Holder.StartTime.Format(time.RFC3339),
			e.Holder.Owner,
		)
	}
	return fmt.Sprintf("cannot acquire lock: %s", e.Reason)
}

// IsLockError checks if err is or wraps a *LockError
func IsLockError(err error) bool {
	var le *LockError
	return errors.As(err, &le)
}
