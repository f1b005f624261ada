package clock

import (
	"fmt"
	"strings"
)

// Domain identifies one of the two monotonic clock domains timestamps can
// come from.
type Domain string

const (
	// Pausable clocks stop advancing while the host is suspended.
	Pausable Domain = "pausable"
	// AlwaysOn clocks keep advancing through suspend. Persisted timestamps
	// are expressed in this domain.
	AlwaysOn Domain = "always_on"
)

// ParseDomain converts a configuration string into a Domain.
func ParseDomain(s string) (Domain, error) {
	switch Domain(strings.ToLower(strings.TrimSpace(s))) {
	case Pausable:
		return Pausable, nil
	case AlwaysOn:
		return AlwaysOn, nil
	default:
		return "", fmt.Errorf("unknown clock domain %q (want %q or %q)", s, Pausable, AlwaysOn)
	}
}

// Clock reads a monotonic nanosecond counter.
type Clock interface {
	Nanos() int64
}

// Func adapts a plain function to the Clock interface.
type Func func() int64

// Nanos implements Clock.
func (f Func) Nanos() int64 { return f() }

// Translate moves a timestamp from its source domain into the always-on
// domain. offset is always-on minus pausable, as returned by Reconciler.
func Translate(ts int64, from Domain, offset int64) int64 {
	if from == Pausable {
		return ts + offset
	}
	return ts
}

// NanosToMicros truncates a nanosecond timestamp to microseconds.
func NanosToMicros(ns int64) int64 {
	return ns / 1000
}
