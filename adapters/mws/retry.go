package mws

import (
	"context"
	"time"
)

// RetryPolicy controls repeated attempts of one call. The zero value makes a
// single attempt.
type RetryPolicy struct {
	MaxAttempts int
	// Backoff is the wait before the second attempt; it doubles after each
	// further attempt up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// delay returns the wait after the given (1-based) failed attempt.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.Backoff
	for i := 1; i < attempt && d > 0; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// wait blocks for the backoff after attempt, or until ctx is done.
func (p RetryPolicy) wait(ctx context.Context, attempt int) error {
	d := p.delay(attempt)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
