// Package sink writes the merged text to the output file. Every write
// replaces the whole file, so readers never observe a partial merge.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/Ning0612/NuUpdater/internal/core/checksum"
	"github.com/Ning0612/NuUpdater/internal/domain"
)

// DefaultFilename is used when no output path was ever chosen
const DefaultFilename = "nu.txt"

// DefaultLockTimeout bounds how long a write waits for another writer
const DefaultLockTimeout = 10 * time.Second

// Sink receives the merged text of a write-worthy cycle
type Sink interface {
	// Write replaces the output with text
	Write(ctx context.Context, text string) (WriteReport, error)

	// Path returns the output location
	Path() string
}

// Locker serializes writers across processes; *lock.FileLock implements it
type Locker interface {
	AcquireContext(ctx context.Context, owner string, poll time.Duration) error
	Release() error
}

// WriteReport describes a completed write
type WriteReport struct {
	Path     string
	Bytes    int
	Digest   string
	Changed  bool // false when the new text equals the previous content
	Duration time.Duration
}

// Options configures a FileSink
type Options struct {
	// Fs defaults to the OS filesystem
	Fs afero.Fs

	// Locker, if set, is held for the duration of each write
	Locker Locker

	// LockTimeout bounds the wait for Locker (DefaultLockTimeout when zero)
	LockTimeout time.Duration

	// Owner is recorded in the lock file
	Owner string
}

// FileSink writes through a temp file and rename
type FileSink struct {
	fs          afero.Fs
	path        string
	locker      Locker
	lockTimeout time.Duration
	owner       string
	calc        *checksum.Calculator
}

// NewFileSink creates a sink for path
func NewFileSink(path string, opts Options) (*FileSink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: output path cannot be empty", domain.ErrValidation)
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.Owner == "" {
		opts.Owner = "nuupdater"
	}

	return &FileSink{
		fs:          opts.Fs,
		path:        filepath.Clean(path),
		locker:      opts.Locker,
		lockTimeout: opts.LockTimeout,
		owner:       opts.Owner,
		calc:        checksum.NewDefaultCalculator(),
	}, nil
}

// Path implements Sink
func (s *FileSink) Path() string {
	return s.path
}

// Write implements Sink. Errors wrap domain.ErrOutputWrite.
func (s *FileSink) Write(ctx context.Context, text string) (WriteReport, error) {
	start := time.Now()
	report := WriteReport{Path: s.path, Bytes: len(text), Digest: checksum.Text(text)}

	if s.locker != nil {
		lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
		err := s.locker.AcquireContext(lockCtx, s.owner, 0)
		cancel()
		if err != nil {
			return report, fmt.Errorf("%w: %s: %w", domain.ErrOutputWrite, s.path, err)
		}
		defer s.locker.Release()
	}

	previous, err := s.calc.File(ctx, s.fs, s.path, checksum.SHA256)
	if err != nil {
		// unreadable previous content only disables change detection
		previous = ""
	}
	report.Changed = previous != report.Digest

	if err := s.replace(text); err != nil {
		return report, fmt.Errorf("%w: %s: %w", domain.ErrOutputWrite, s.path, mapError(err))
	}

	report.Duration = time.Since(start)
	return report, nil
}

func (s *FileSink) replace(text string) error {
	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	_, copyErr := io.Copy(tmp, strings.NewReader(text))
	closeErr := tmp.Close()

	if copyErr != nil {
		s.fs.Remove(tmpPath)
		return copyErr
	}
	if closeErr != nil {
		s.fs.Remove(tmpPath)
		return closeErr
	}

	if err := s.fs.Rename(tmpPath, s.path); err != nil {
		s.fs.Remove(tmpPath)
		return err
	}
	return nil
}

// EnsureFile checks that path is an existing regular file. When it is
// missing and create is true an empty file is created; otherwise the result
// wraps domain.ErrOutputMissing.
func EnsureFile(fs afero.Fs, path string, create bool) error {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	info, err := fs.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return fmt.Errorf("%w: %s", domain.ErrOutputNotFile, path)
	case err == nil:
		return nil
	case !os.IsNotExist(err):
		return mapError(err)
	case !create:
		return fmt.Errorf("%w: %s", domain.ErrOutputMissing, path)
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return mapError(err)
	}
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return mapError(err)
	}
	return f.Close()
}

// Exists reports whether path is an existing regular file
func Exists(fs afero.Fs, path string) bool {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	info, err := fs.Stat(path)
	return err == nil && !info.IsDir()
}

// ReadFile returns the current output content
func ReadFile(fs afero.Fs, path string) (string, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", domain.ErrOutputMissing, path)
		}
		return "", mapError(err)
	}
	return string(data), nil
}

// mapError converts OS errors to domain errors
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if os.IsPermission(err) {
		return fmt.Errorf("%w: %w", domain.ErrPermissionDenied, err)
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && strings.Contains(pathErr.Err.Error(), "is a directory") {
		return fmt.Errorf("%w: %w", domain.ErrOutputNotFile, err)
	}
	return err
}
