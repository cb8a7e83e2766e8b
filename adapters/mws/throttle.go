package mws

import (
	"context"
	"time"

	"github.com/dominhhai/mws-sdk/adapters/clock"
	"github.com/dominhhai/mws-sdk/domain/throttle"
	"github.com/dominhhai/mws-sdk/ports"
)

// Throttle paces calls by the quota state kept in a store. With a shared
// store, separate processes share one quota.
type Throttle struct {
	store ports.ThrottleStore
	clock ports.Clock
}

// NewThrottle creates a throttle over store. A nil clock uses the wall
// clock.
func NewThrottle(store ports.ThrottleStore, c ports.Clock) *Throttle {
	if c == nil {
		c = clock.Real{}
	}
	return &Throttle{store: store, clock: c}
}

// Reserve takes one request from the quota of key. It returns zero when
// the request was taken, otherwise the time to wait before trying again.
func (t *Throttle) Reserve(ctx context.Context, key string, cfg throttle.Config) (time.Duration, error) {
	var delay time.Duration
	err := t.store.Update(ctx, key, func(s throttle.State) throttle.State {
		now := t.clock.Now()
		result, next := throttle.Check(s, cfg, now)
		delay = throttle.CalculateDelay(result, now)
		return next
	})
	return delay, err
}

// Wait blocks until a request to key fits cfg or ctx is done.
func (t *Throttle) Wait(ctx context.Context, key string, cfg throttle.Config) error {
	if !cfg.Enabled() {
		return nil
	}
	for {
		delay, err := t.Reserve(ctx, key, cfg)
		if err != nil {
			return err
		}
		if delay == 0 {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Exhaust marks the quota of key as used up.
func (t *Throttle) Exhaust(ctx context.Context, key string, cfg throttle.Config) error {
	if !cfg.Enabled() {
		return nil
	}
	return t.store.Update(ctx, key, func(throttle.State) throttle.State {
		return throttle.Exhaust(cfg, t.clock.Now())
	})
}

// Ensure interface compliance.
var _ ports.Throttler = (*Throttle)(nil)
