package memory

import (
	"context"
	"sync"

	"github.com/dominhhai/mws-sdk/domain/throttle"
	"github.com/dominhhai/mws-sdk/ports"
)

// ThrottleStore is an in-memory implementation of ports.ThrottleStore.
type ThrottleStore struct {
	mu    sync.Mutex
	state map[string]throttle.State
}

// NewThrottleStore creates a new in-memory quota store.
func NewThrottleStore() *ThrottleStore {
	return &ThrottleStore{
		state: make(map[string]throttle.State),
	}
}

// Get retrieves the quota state of key.
func (s *ThrottleStore) Get(ctx context.Context, key string) (throttle.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state[key], nil
}

// Update applies fn to the state of key under the store lock.
func (s *ThrottleStore) Update(ctx context.Context, key string, fn func(throttle.State) throttle.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[key] = fn(s.state[key])
	return nil
}

// Clear removes all state (for testing).
func (s *ThrottleStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = make(map[string]throttle.State)
}

// Ensure interface compliance.
var _ ports.ThrottleStore = (*ThrottleStore)(nil)
