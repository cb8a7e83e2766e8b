// Package enum provides a fixed choice set with per-choice activation.
package enum

import (
	"errors"
	"fmt"
)

// ErrUnknownChoice is returned for labels outside the declared set.
var ErrUnknownChoice = errors.New("unknown enum choice")

// Enum is an ordered set of string choices, each independently enabled.
// The zero value has no choices. An Enum is not safe for concurrent mutation.
type Enum struct {
	choices []string
	active  map[string]bool
}

// New creates an enum with every choice disabled. Duplicate labels are kept once.
func New(choices ...string) *Enum {
	e := &Enum{active: make(map[string]bool, len(choices))}
	for _, c := range choices {
		if _, dup := e.active[c]; dup {
			continue
		}
		e.choices = append(e.choices, c)
		e.active[c] = false
	}
	return e
}

// Enable turns the given choices on.
func (e *Enum) Enable(labels ...string) error {
	return e.apply(labels, func(bool) bool { return true })
}

// Disable turns the given choices off.
func (e *Enum) Disable(labels ...string) error {
	return e.apply(labels, func(bool) bool { return false })
}

// Toggle flips the given choices.
func (e *Enum) Toggle(labels ...string) error {
	return e.apply(labels, func(cur bool) bool { return !cur })
}

// apply checks every label before changing anything.
func (e *Enum) apply(labels []string, fn func(bool) bool) error {
	for _, l := range labels {
		if _, ok := e.active[l]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownChoice, l)
		}
	}
	for _, l := range labels {
		e.active[l] = fn(e.active[l])
	}
	return nil
}

// All returns every declared choice regardless of state.
func (e *Enum) All() []string {
	out := make([]string, len(e.choices))
	copy(out, e.choices)
	return out
}

// Values returns the enabled choices in declaration order.
func (e *Enum) Values() []string {
	var out []string
	for _, c := range e.choices {
		if e.active[c] {
			out = append(out, c)
		}
	}
	return out
}

// Has reports whether label is a declared choice.
func (e *Enum) Has(label string) bool {
	_, ok := e.active[label]
	return ok
}

// Enabled reports whether label is declared and on.
func (e *Enum) Enabled(label string) bool {
	return e.active[label]
}

// Clone returns an independent copy, state included.
func (e *Enum) Clone() *Enum {
	c := New(e.choices...)
	for k, v := range e.active {
		c.active[k] = v
	}
	return c
}
