package logbook

import (
	"fmt"
	"strings"
	"sync"
)

// Entry is one in-memory log record.
type Entry struct {
	Level   Level
	Message string
}

// Memory keeps entries in memory. It is used by tests and by the progress
// view, and can forward to another logbook.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	next    *Logbook
}

// NewMemory returns an in-memory log that also forwards to next when it is
// not nil.
func NewMemory(next *Logbook) *Memory {
	return &Memory{next: next}
}

func (m *Memory) append(level Level, format string, args ...any) {
	msg := strings.TrimSpace(fmt.Sprintf(format, args...))
	m.mu.Lock()
	m.entries = append(m.entries, Entry{Level: level, Message: msg})
	m.mu.Unlock()
	m.next.Append(level, msg)
}

// Info records an informational entry.
func (m *Memory) Info(format string, args ...any) { m.append(LevelInfo, format, args...) }

// Warn records a warning entry.
func (m *Memory) Warn(format string, args ...any) { m.append(LevelWarn, format, args...) }

// Error records an error entry.
func (m *Memory) Error(format string, args ...any) { m.append(LevelError, format, args...) }

// Entries returns a copy of every recorded entry.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// Count returns how many entries of level were recorded.
func (m *Memory) Count(level Level) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Contains reports whether an entry of level mentions substr.
func (m *Memory) Contains(level Level, substr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.Level == level && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
