package clock

import "time"

var processStart = time.Now()

// runtimeNanos reads the Go runtime monotonic clock relative to process start.
func runtimeNanos() int64 {
	return int64(time.Since(processStart))
}

// ForDomain returns the host clock for a domain.
func ForDomain(d Domain) Clock {
	if d == Pausable {
		return Monotonic()
	}
	return Boottime()
}
