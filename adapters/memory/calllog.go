// Package memory provides in-memory store implementations.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dominhhai/mws-sdk/domain/calllog"
	"github.com/dominhhai/mws-sdk/ports"
)

// CallLog is an in-memory implementation of ports.CallLogStore.
// When capacity is positive the oldest entries are dropped past it.
type CallLog struct {
	mu       sync.RWMutex
	entries  []calllog.Entry
	capacity int
}

// NewCallLog creates a new in-memory call log. A capacity of zero keeps
// every entry.
func NewCallLog(capacity int) *CallLog {
	return &CallLog{
		entries:  make([]calllog.Entry, 0),
		capacity: capacity,
	}
}

// Record stores an entry.
func (s *CallLog) Record(ctx context.Context, e calllog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, e)
	if s.capacity > 0 && len(s.entries) > s.capacity {
		s.entries = append([]calllog.Entry(nil), s.entries[len(s.entries)-s.capacity:]...)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (s *CallLog) List(ctx context.Context, limit int) ([]calllog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]calllog.Entry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, s.entries[i])
	}
	return result, nil
}

// Since returns every entry at or after t, oldest first.
func (s *CallLog) Since(ctx context.Context, t time.Time) ([]calllog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []calllog.Entry
	for _, e := range s.entries {
		if !e.Timestamp.Before(t) {
			result = append(result, e)
		}
	}
	return result, nil
}

// Len returns the number of stored entries.
func (s *CallLog) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes all entries (for testing).
func (s *CallLog) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make([]calllog.Entry, 0)
}

// Ensure interface compliance.
var _ ports.CallLogStore = (*CallLog)(nil)
