// Package logbook is the run log: timestamped, levelled lines appended to a
// file under .modmigrate/logs so a migration can be inspected afterwards.
package logbook

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is the severity of an entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logbook appends entries to a file and optionally mirrors them to a writer
// (stderr for the CLI). A nil *Logbook discards everything.
type Logbook struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	mirror io.Writer
	now    func() time.Time
}

// Option configures a Logbook.
type Option func(*Logbook)

// WithMirror also writes every entry to w.
func WithMirror(w io.Writer) Option {
	return func(l *Logbook) { l.mirror = w }
}

// WithClock replaces time.Now for entry timestamps.
func WithClock(clock func() time.Time) Option {
	return func(l *Logbook) {
		if clock != nil {
			l.now = clock
		}
	}
}

// New opens (or creates) the log at path.
func New(path string, opts ...Option) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logbook: ensure log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logbook: open log file: %w", err)
	}
	l := &Logbook{file: f, path: path, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Close releases the file handle.
func (l *Logbook) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.file.Close()
	l.file = nil
	return err
}

// Path is the log file location.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes one entry. Write errors are swallowed; logging never fails
// a migration.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	message = strings.TrimRight(strings.TrimSpace(message), "\n")
	l.mu.Lock()
	defer l.mu.Unlock()
	stamp := l.now().UTC().Format(time.RFC3339)
	line := fmt.Sprintf("[%s] %-5s %s\n", stamp, level, message)
	if l.file != nil {
		_, _ = l.file.WriteString(line)
	}
	if l.mirror != nil {
		_, _ = io.WriteString(l.mirror, line)
	}
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a warning.
func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}

// Tail returns the last n lines and how many lines the log holds.
func (l *Logbook) Tail(n int) ([]string, int) {
	if l == nil || n <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer f.Close()

	ring := make([]string, n)
	total := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ring[total%n] = scanner.Text()
		total++
	}
	if total == 0 {
		return nil, 0
	}
	if total < n {
		return append([]string(nil), ring[:total]...), total
	}
	start := total % n
	return append(append([]string(nil), ring[start:]...), ring[:start]...), total
}
