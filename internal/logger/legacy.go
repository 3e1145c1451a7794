package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// LegacyLogger prints one plain "time LEVEL msg key=value" line per entry,
// selected via LegacyEnv for terminals that mangle structured output
type LegacyLogger struct {
	mu        *sync.Mutex
	out       io.Writer
	level     Level
	fields    []any
	sanitizer *Sanitizer
}

// NewLegacyLogger creates a legacy logger at info level writing to stderr
func NewLegacyLogger() *LegacyLogger {
	return NewLegacyLoggerTo(os.Stderr)
}

// NewLegacyLoggerTo creates a legacy logger writing to w
func NewLegacyLoggerTo(w io.Writer) *LegacyLogger {
	return &LegacyLogger{
		mu:        &sync.Mutex{},
		out:       w,
		level:     LevelInfo,
		sanitizer: NewSanitizer(),
	}
}

// SetLevel sets the minimum level
func (l *LegacyLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *LegacyLogger) log(level Level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02 15:04:05"))
	b.WriteString(" ")
	b.WriteString(strings.ToUpper(level.String()))
	b.WriteString(" ")
	b.WriteString(l.sanitizer.Sanitize(msg))

	kv := l.sanitizer.SanitizeArgs(append(append([]any{}, l.fields...), args...))
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	b.WriteString("\n")
	io.WriteString(l.out, b.String())
}

func (l *LegacyLogger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args) }
func (l *LegacyLogger) Info(msg string, args ...any)  { l.log(LevelInfo, msg, args) }
func (l *LegacyLogger) Warn(msg string, args ...any)  { l.log(LevelWarn, msg, args) }
func (l *LegacyLogger) Error(msg string, args ...any) { l.log(LevelError, msg, args) }

// With returns a logger that prefixes args to every entry
func (l *LegacyLogger) With(args ...any) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &LegacyLogger{
		mu:        l.mu,
		out:       l.out,
		level:     l.level,
		fields:    append(append([]any{}, l.fields...), args...),
		sanitizer: l.sanitizer,
	}
}

func (l *LegacyLogger) Sync() error {
	return nil
}

func (l *LegacyLogger) Shutdown() error {
	return nil
}
