// Package checksum computes digests of the merged output so unchanged
// rewrites can be told apart from real updates.
package checksum

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/spf13/afero"
)

// Algorithm is a digest algorithm
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA256 Algorithm = "sha256"
)

// Options configures a Calculator
type Options struct {
	// MaxSize rejects inputs larger than this many bytes (0 = unlimited)
	MaxSize int64

	// BufferSize is the streaming read chunk
	BufferSize int
}

// DefaultOptions matches the fetch body cap
func DefaultOptions() Options {
	return Options{
		MaxSize:    50 << 20,
		BufferSize: 32 << 10,
	}
}

// Calculator streams a reader through a hash
type Calculator struct {
	opts Options
}

// NewCalculator creates a calculator with opts
func NewCalculator(opts Options) *Calculator {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultOptions().BufferSize
	}
	return &Calculator{opts: opts}
}

// NewDefaultCalculator creates a calculator with DefaultOptions
func NewDefaultCalculator() *Calculator {
	return NewCalculator(DefaultOptions())
}

func newHash(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case MD5:
		return md5.New(), nil
	case SHA256:
		return sha256.New(), nil
	}
	return nil, fmt.Errorf("unsupported algorithm: %s", algo)
}

// Calculate returns the hex digest of reader, checking ctx between chunks
func (c *Calculator) Calculate(ctx context.Context, reader io.Reader, algo Algorithm) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}

	if c.opts.MaxSize > 0 {
		reader = io.LimitReader(reader, c.opts.MaxSize+1)
	}

	buf := make([]byte, c.opts.BufferSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := reader.Read(buf)
		if n > 0 {
			total += int64(n)
			if c.opts.MaxSize > 0 && total > c.opts.MaxSize {
				return "", fmt.Errorf("input size exceeds maximum (%d bytes)", c.opts.MaxSize)
			}
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read error: %w", err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// File digests path on fs. A missing file yields "" and no error.
func (c *Calculator) File(ctx context.Context, fs afero.Fs, path string, algo Algorithm) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()
	return c.Calculate(ctx, f, algo)
}

// Text returns the sha256 hex digest of s
func Text(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// IsSupported checks if algo is known
func IsSupported(algo Algorithm) bool {
	_, err := newHash(algo)
	return err == nil
}
