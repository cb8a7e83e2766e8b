// Package clock provides Clock implementations.
package clock

import (
	"sync"
	"time"

	"github.com/dominhhai/mws-sdk/ports"
)

// Real returns the current time in UTC.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Frozen always returns the same instant. Use it to replay a signed request
// exactly, since the Timestamp field is the only varying input.
type Frozen struct {
	At time.Time
}

// Now returns the frozen instant.
func (f Frozen) Now() time.Time {
	return f.At
}

// Stepper starts at a fixed instant and moves forward by Step on every call.
// Tests use it to get distinct yet predictable per-call timestamps.
type Stepper struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// NewStepper creates a stepper starting at start.
func NewStepper(start time.Time, step time.Duration) *Stepper {
	return &Stepper{next: start, step: step}
}

// Now returns the current instant and advances the clock.
func (s *Stepper) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.next
	s.next = s.next.Add(s.step)
	return t
}

// Ensure interface compliance.
var (
	_ ports.Clock = Real{}
	_ ports.Clock = Frozen{}
	_ ports.Clock = (*Stepper)(nil)
)
