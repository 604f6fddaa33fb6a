// Package diag provides an append-only, bounded in-memory log of workflow
// milestones and failures, exportable for support purposes.
package diag

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity bounds the log so it never grows without limit over a long
// session. Oldest entries are evicted first.
const DefaultCapacity = 300

// Entry is a single timestamped diagnostic line.
type Entry struct {
	At        time.Time `json:"at"`
	Component string    `json:"component"`
	Message   string    `json:"message"`
}

func (e Entry) String() string {
	return fmt.Sprintf("%s [%s] %s", e.At.Format(time.RFC3339), e.Component, e.Message)
}

// Log is written by every workflow component and read as a snapshot by the
// controller. Appends are strictly ordered by arrival and never lost to
// interleaving.
type Log struct {
	mu       sync.RWMutex
	capacity int
	entries  []Entry
	now      func() time.Time
}

// NewLog creates a bounded log. A non-positive capacity uses DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Log{
		capacity: capacity,
		entries:  make([]Entry, 0, capacity),
		now:      time.Now,
	}
}

// Append records one line for the given component.
func (l *Log) Append(component, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == l.capacity {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:l.capacity-1]
	}

	l.entries = append(l.entries, Entry{
		At:        l.now(),
		Component: component,
		Message:   message,
	})
}

// Appendf records one formatted line for the given component.
func (l *Log) Appendf(component, format string, args ...any) {
	l.Append(component, fmt.Sprintf(format, args...))
}

// Snapshot returns a copy of the current entries, oldest first.
func (l *Log) Snapshot() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)

	return out
}

// Len returns the current number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.entries)
}

// Export renders the whole log as one shareable text block.
func (l *Log) Export() string {
	entries := l.Snapshot()
	lines := make([]string, len(entries))

	for i, entry := range entries {
		lines[i] = entry.String()
	}

	return strings.Join(lines, "\n")
}
