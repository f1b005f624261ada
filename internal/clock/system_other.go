//go:build !linux

package clock

// Monotonic falls back to the Go runtime monotonic clock.
func Monotonic() Clock {
	return Func(runtimeNanos)
}

// Boottime falls back to the Go runtime monotonic clock; on these platforms
// the two domains are indistinguishable and the reconciled offset is ~0.
func Boottime() Clock {
	return Func(runtimeNanos)
}
