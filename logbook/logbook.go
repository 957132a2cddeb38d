// Package logbook holds the dashboard's ordered, append-only audit trail.
//
// Lines are kept in insertion order. The log is capped: once Capacity lines
// are held, each append drops the oldest line. Observers are notified after
// every append and clear, outside the lock, in registration order.
package logbook

import (
	"fmt"
	"sync"
)

// Observer receives every appended line; cleared is true for Clear notifications
type Observer func(line string, cleared bool)

// Log is a capped, ordered list of text lines, safe for concurrent use
type Log struct {
	mu        sync.RWMutex
	lines     []string
	capacity  int
	dropped   uint64
	observers []Observer
}

// New creates a log holding at most capacity lines, capacity <= 0 means unbounded
func New(capacity int) *Log {
	return &Log{capacity: capacity}
}

// Subscribe registers an observer
func (l *Log) Subscribe(o Observer) {
	l.mu.Lock()
	l.observers = append(l.observers, o)
	l.mu.Unlock()
}

// Append adds one line at the end
func (l *Log) Append(line string) {
	l.mu.Lock()
	l.lines = append(l.lines, line)
	if l.capacity > 0 && len(l.lines) > l.capacity {
		over := len(l.lines) - l.capacity
		l.lines = append(l.lines[:0], l.lines[over:]...)
		l.dropped += uint64(over)
	}
	observers := l.observers
	l.mu.Unlock()

	for _, o := range observers {
		o(line, false)
	}
}

// Appendf formats and appends one line
func (l *Log) Appendf(format string, args ...any) {
	l.Append(fmt.Sprintf(format, args...))
}

// Clear removes every line
func (l *Log) Clear() {
	l.mu.Lock()
	l.lines = nil
	observers := l.observers
	l.mu.Unlock()

	for _, o := range observers {
		o("", true)
	}
}

// Lines returns a copy of all retained lines
func (l *Log) Lines() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// Tail returns a copy of the last n lines
func (l *Log) Tail(n int) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	if n > len(l.lines) {
		n = len(l.lines)
	}
	out := make([]string, n)
	copy(out, l.lines[len(l.lines)-n:])
	return out
}

// Page returns up to size lines starting at offset from the oldest retained line
func (l *Log) Page(offset, size int) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if offset < 0 || size <= 0 || offset >= len(l.lines) {
		return nil
	}
	end := offset + size
	if end > len(l.lines) {
		end = len(l.lines)
	}
	out := make([]string, end-offset)
	copy(out, l.lines[offset:end])
	return out
}

// Len returns the number of retained lines
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.lines)
}

// Dropped returns how many lines were evicted by the cap
func (l *Log) Dropped() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dropped
}
