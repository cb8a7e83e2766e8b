// Package throttle models per-action request quotas.
// A quota is a bucket of Quota requests that regains one request every
// Restore interval. All functions are pure.
package throttle

import "time"

// Config is the quota of one action (value type).
type Config struct {
	Quota   int           // Maximum burst of requests
	Restore time.Duration // Time to regain one request
}

// Enabled reports whether the quota limits anything.
func (c Config) Enabled() bool {
	return c.Quota > 0 && c.Restore > 0
}

// State is the usage of one quota (value type).
type State struct {
	Used   int       // Requests held against the quota
	Marked time.Time // Instant Used was last brought up to date
}

// Result is the outcome of a quota check (value type).
type Result struct {
	Allowed   bool
	Remaining int       // Requests left before the quota is exhausted
	RetryAt   time.Time // When the next request fits, if denied
	Reason    string
}

// Reasons for denial
const (
	ReasonQuotaExceeded = "quota_exceeded"
)

// Restore credits the requests regained between state.Marked and now.
func Restore(state State, cfg Config, now time.Time) State {
	if state.Used <= 0 || state.Marked.IsZero() {
		return State{Marked: now}
	}
	if !cfg.Enabled() || !now.After(state.Marked) {
		return state
	}

	n := int(now.Sub(state.Marked) / cfg.Restore)
	if n >= state.Used {
		return State{Marked: now}
	}
	state.Used -= n
	state.Marked = state.Marked.Add(time.Duration(n) * cfg.Restore)
	return state
}

// Check takes one request from the quota if one is left.
// The caller persists newState.
func Check(state State, cfg Config, now time.Time) (Result, State) {
	if !cfg.Enabled() {
		return Result{Allowed: true, Remaining: -1}, state
	}

	state = Restore(state, cfg, now)
	if state.Used < cfg.Quota {
		state.Used++
		return Result{
			Allowed:   true,
			Remaining: cfg.Quota - state.Used,
		}, state
	}

	return Result{
		Allowed: false,
		RetryAt: state.Marked.Add(cfg.Restore),
		Reason:  ReasonQuotaExceeded,
	}, state
}

// Exhaust marks the whole quota as used at now. It is applied when the
// service reports throttling the local state did not predict.
func Exhaust(cfg Config, now time.Time) State {
	return State{Used: cfg.Quota, Marked: now}
}

// CalculateDelay returns how long to wait before checking again.
func CalculateDelay(result Result, now time.Time) time.Duration {
	if result.Allowed {
		return 0
	}
	delay := result.RetryAt.Sub(now)
	if delay < 0 {
		return 0
	}
	return delay
}
