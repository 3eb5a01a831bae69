package autoconnect

import (
	"sync"
	"time"
)

// DefaultLogCapacity bounds the in-memory run log.
const DefaultLogCapacity = 200

// SystemSource is the Source of entries not tied to a profile.
const SystemSource = "System"

// Status is the state shown for a log entry.
type Status string

const (
	StatusTesting    Status = "testing"
	StatusConnecting Status = "connecting"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusTimeout    Status = "timeout"
	StatusCancelled  Status = "cancelled"
)

// Entry is one line of the run log.
type Entry struct {
	ID       int           `json:"id"`
	Time     time.Time     `json:"time"`
	Source   string        `json:"source"`
	Status   Status        `json:"status"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration,omitempty"`
}

// System reports whether the entry was written by the engine itself.
func (e Entry) System() bool {
	return e.Source == SystemSource
}

// Log is a capped, in-memory list of entries. It is never persisted.
type Log struct {
	mu       sync.RWMutex
	capacity int
	nextID   int
	entries  []Entry
}

// NewLog returns a log keeping at most capacity entries.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &Log{capacity: capacity}
}

// Add appends e, dropping the oldest entry when full, and returns it with
// its ID and Time filled in.
func (l *Log) Add(e Entry) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	e.ID = l.nextID
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if len(l.entries) >= l.capacity {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
	}
	l.entries = append(l.entries, e)
	return e
}

// System appends an engine message.
func (l *Log) System(status Status, message string) Entry {
	return l.Add(Entry{Source: SystemSource, Status: status, Message: message})
}

// Update rewrites the entry with the given id in place.
func (l *Log) Update(id int, status Status, message string, duration time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.entries {
		if l.entries[i].ID == id {
			l.entries[i].Status = status
			l.entries[i].Message = message
			l.entries[i].Duration = duration
			return true
		}
	}
	return false
}

// Entries returns a copy of the log, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Clear removes every entry.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
