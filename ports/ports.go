// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"net/http"
	"time"

	"github.com/dominhhai/mws-sdk/domain/calllog"
	"github.com/dominhhai/mws-sdk/domain/reply"
	"github.com/dominhhai/mws-sdk/domain/request"
	"github.com/dominhhai/mws-sdk/domain/throttle"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
// The client stamps every call with Clock.Now, so freezing the clock makes
// a request byte-for-byte reproducible.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// HTTPDoer sends HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Hasher hashes and checks secrets such as relay access tokens.
type Hasher interface {
	// Hash generates a hash from a plaintext value.
	Hash(plaintext string) ([]byte, error)

	// Compare checks if plaintext matches hash.
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Call History Ports
// -----------------------------------------------------------------------------

// CallRecorder receives one entry per dispatched call.
type CallRecorder interface {
	Record(ctx context.Context, e calllog.Entry) error
}

// CallLogStore persists call history.
type CallLogStore interface {
	CallRecorder

	// List returns the most recent entries, newest first.
	List(ctx context.Context, limit int) ([]calllog.Entry, error)

	// Since returns every entry at or after t, oldest first.
	Since(ctx context.Context, t time.Time) ([]calllog.Entry, error)
}

// -----------------------------------------------------------------------------
// Service Ports
// -----------------------------------------------------------------------------

// Invoker dispatches a built request. *mws.Client satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, r *request.Request) (*reply.Reply, error)
}

// -----------------------------------------------------------------------------
// Throttling Ports
// -----------------------------------------------------------------------------

// Throttler paces calls against per-action request quotas.
type Throttler interface {
	// Wait blocks until a call to key fits cfg or ctx is done.
	Wait(ctx context.Context, key string, cfg throttle.Config) error

	// Exhaust marks the quota of key as used up.
	Exhaust(ctx context.Context, key string, cfg throttle.Config) error
}

// ThrottleStore persists quota usage.
type ThrottleStore interface {
	// Get returns the state of key. Unknown keys have the zero state.
	Get(ctx context.Context, key string) (throttle.State, error)

	// Update replaces the state of key with fn(state), atomically with
	// respect to other updates.
	Update(ctx context.Context, key string, fn func(throttle.State) throttle.State) error
}
