package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// SlogLogger writes sanitized records through log/slog
type SlogLogger struct {
	entry
	writers []io.WriteCloser // owned, closed on Shutdown
}

// NewSlogLogger builds a logger from config
func NewSlogLogger(config Config) (*SlogLogger, error) {
	var (
		writers   []io.Writer
		closeable []io.WriteCloser
	)

	for _, output := range config.Outputs {
		switch output.Type {
		case OutputStdout, OutputStderr:
			w := output.Writer
			if w == nil {
				w = os.Stdout
				if output.Type == OutputStderr {
					w = os.Stderr
				}
			}
			writers = append(writers, w)
			if wc, ok := w.(io.WriteCloser); ok && !isStdStream(wc) {
				closeable = append(closeable, wc)
			}
		case OutputFile:
			if !config.File.Enabled {
				continue
			}
			fw, err := createFileWriter(config.File)
			if err != nil {
				return nil, fmt.Errorf("failed to create file writer: %w", err)
			}
			writers = append(writers, fw)
			closeable = append(closeable, fw)
		}
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	out := io.MultiWriter(writers...)
	opts := &slog.HandlerOptions{Level: convertLevel(config.Level)}

	var handler slog.Handler
	if config.Format == FormatJSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return &SlogLogger{
		entry:   entry{logger: slog.New(handler), sanitizer: NewSanitizer()},
		writers: closeable,
	}, nil
}

func isStdStream(w io.WriteCloser) bool {
	return w == os.Stdout || w == os.Stderr || w == os.Stdin
}

// createFileWriter returns a lumberjack writer that rotates by size and age
func createFileWriter(config FileConfig) (io.WriteCloser, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("log file path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   config.Path,
		MaxSize:    config.MaxSizeMB,
		MaxAge:     config.MaxAgeDays,
		MaxBackups: config.MaxBackups,
		Compress:   config.Compress,
	}, nil
}

func convertLevel(level Level) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Shutdown closes every owned writer
func (l *SlogLogger) Shutdown() error {
	var lastErr error
	for _, w := range l.writers {
		if err := w.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// entry is the shared sanitizing front end. Children created by With embed
// it without owning any writer, so closing stays with the root logger.
type entry struct {
	logger    *slog.Logger
	sanitizer *Sanitizer
}

func (e entry) Debug(msg string, args ...any) {
	e.logger.Debug(e.sanitizer.Sanitize(msg), e.sanitizer.SanitizeArgs(args)...)
}

func (e entry) Info(msg string, args ...any) {
	e.logger.Info(e.sanitizer.Sanitize(msg), e.sanitizer.SanitizeArgs(args)...)
}

func (e entry) Warn(msg string, args ...any) {
	e.logger.Warn(e.sanitizer.Sanitize(msg), e.sanitizer.SanitizeArgs(args)...)
}

func (e entry) Error(msg string, args ...any) {
	e.logger.Error(e.sanitizer.Sanitize(msg), e.sanitizer.SanitizeArgs(args)...)
}

func (e entry) With(args ...any) Logger {
	return childLogger{entry{
		logger:    e.logger.With(e.sanitizer.SanitizeArgs(args)...),
		sanitizer: e.sanitizer,
	}}
}

// Sync is a no-op: slog writes through and lumberjack flushes on write
func (e entry) Sync() error {
	return nil
}

type childLogger struct {
	entry
}

func (childLogger) Shutdown() error {
	return nil
}
