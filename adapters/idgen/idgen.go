// Package idgen provides call ID generation.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/dominhhai/mws-sdk/ports"
	"github.com/google/uuid"
)

// UUID generates time-ordered UUIDs (version 7), so call IDs sort by start time.
type UUID struct{}

// New generates a new UUID. It falls back to a random v4 if the clock
// source fails.
func (UUID) New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Sequential generates prefix1, prefix2, ... (for tests).
type Sequential struct {
	prefix  string
	counter atomic.Uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential ID.
func (s *Sequential) New() string {
	return s.prefix + strconv.FormatUint(s.counter.Add(1), 10)
}

// Ensure interface compliance.
var (
	_ ports.IDGenerator = UUID{}
	_ ports.IDGenerator = (*Sequential)(nil)
)
