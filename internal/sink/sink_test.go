package sink

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ning0612/NuUpdater/internal/core/checksum"
	"github.com/Ning0612/NuUpdater/internal/domain"
	"github.com/Ning0612/NuUpdater/internal/lock"
)

func TestFileSink_WriteReplacesWholeFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/nu.txt", []byte("old content that is longer\n"), 0644))

	s, err := NewFileSink("/data/nu.txt", Options{Fs: fs})
	require.NoError(t, err)

	report, err := s.Write(context.Background(), "line1\nline2\n")
	require.NoError(t, err)

	got, err := afero.ReadFile(fs, "/data/nu.txt")
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\n", string(got))
	assert.Equal(t, "/data/nu.txt", report.Path)
	assert.Equal(t, 12, report.Bytes)
	assert.Equal(t, checksum.Text("line1\nline2\n"), report.Digest)
	assert.True(t, report.Changed)

	entries, err := afero.ReadDir(fs, "/data")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestFileSink_UnchangedContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := NewFileSink("/nu.txt", Options{Fs: fs})
	require.NoError(t, err)

	first, err := s.Write(context.Background(), "a\n")
	require.NoError(t, err)
	assert.True(t, first.Changed)

	second, err := s.Write(context.Background(), "a\n")
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, first.Digest, second.Digest)
}

func TestFileSink_CreatesParentDirectories(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := NewFileSink("/a/b/c/nu.txt", Options{Fs: fs})
	require.NoError(t, err)

	_, err = s.Write(context.Background(), "x\n")
	require.NoError(t, err)
	assert.True(t, Exists(fs, "/a/b/c/nu.txt"))
}

func TestFileSink_ReadOnlyFs(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/nu.txt", []byte("keep\n"), 0644))

	s, err := NewFileSink("/nu.txt", Options{Fs: afero.NewReadOnlyFs(base)})
	require.NoError(t, err)

	_, err = s.Write(context.Background(), "new\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOutputWrite)

	got, _ := afero.ReadFile(base, "/nu.txt")
	assert.Equal(t, "keep\n", string(got))
}

func TestNewFileSink_EmptyPath(t *testing.T) {
	_, err := NewFileSink("  ", Options{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

type fakeLocker struct {
	acquired int
	released int
	err      error
}

func (f *fakeLocker) AcquireContext(ctx context.Context, owner string, poll time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.acquired++
	return nil
}

func (f *fakeLocker) Release() error {
	f.released++
	return nil
}

func TestFileSink_HoldsLockerDuringWrite(t *testing.T) {
	locker := &fakeLocker{}
	s, err := NewFileSink("/nu.txt", Options{Fs: afero.NewMemMapFs(), Locker: locker})
	require.NoError(t, err)

	_, err = s.Write(context.Background(), "x\n")
	require.NoError(t, err)
	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 1, locker.released)
}

func TestFileSink_LockFailureSkipsWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	locker := &fakeLocker{err: errors.New("held elsewhere")}
	s, err := NewFileSink("/nu.txt", Options{Fs: fs, Locker: locker})
	require.NoError(t, err)

	_, err = s.Write(context.Background(), "x\n")
	assert.ErrorIs(t, err, domain.ErrOutputWrite)
	assert.False(t, Exists(fs, "/nu.txt"))
	assert.Equal(t, 0, locker.released)
}

func TestFileSink_RealLockOnDisk(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nu.txt")

	fl, err := lock.ForPath(target)
	require.NoError(t, err)

	s, err := NewFileSink(target, Options{Locker: fl, Owner: "test"})
	require.NoError(t, err)

	_, err = s.Write(context.Background(), "line1\n")
	require.NoError(t, err)

	got, err := ReadFile(nil, target)
	require.NoError(t, err)
	assert.Equal(t, "line1\n", got)
	assert.False(t, fl.IsLocked(), "lock must be released after the write")
}

func TestFileSink_WaitsForOtherWriter(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nu.txt")

	other, err := lock.ForPath(target)
	require.NoError(t, err)
	require.NoError(t, other.Acquire("other"))
	defer other.Release()

	mine, err := lock.ForPath(target)
	require.NoError(t, err)
	s, err := NewFileSink(target, Options{Locker: mine, LockTimeout: 80 * time.Millisecond})
	require.NoError(t, err)

	_, err = s.Write(context.Background(), "x\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOutputWrite)
	assert.True(t, lock.IsLockError(err))
}

func TestEnsureFile(t *testing.T) {
	fs := afero.NewMemMapFs()

	err := EnsureFile(fs, "/out/nu.txt", false)
	assert.ErrorIs(t, err, domain.ErrOutputMissing)

	require.NoError(t, EnsureFile(fs, "/out/nu.txt", true))
	assert.True(t, Exists(fs, "/out/nu.txt"))

	content, err := ReadFile(fs, "/out/nu.txt")
	require.NoError(t, err)
	assert.Empty(t, content)

	// existing file is left untouched
	require.NoError(t, afero.WriteFile(fs, "/out/nu.txt", []byte("x\n"), 0644))
	require.NoError(t, EnsureFile(fs, "/out/nu.txt", true))
	content, _ = ReadFile(fs, "/out/nu.txt")
	assert.Equal(t, "x\n", content)

	require.NoError(t, fs.MkdirAll("/dir", 0755))
	assert.ErrorIs(t, EnsureFile(fs, "/dir", true), domain.ErrOutputNotFile)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(afero.NewMemMapFs(), "/missing.txt")
	assert.ErrorIs(t, err, domain.ErrOutputMissing)
}
