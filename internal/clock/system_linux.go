//go:build linux

package clock

import (
	"golang.org/x/sys/unix"
)

// Monotonic returns CLOCK_MONOTONIC, which does not advance during suspend.
func Monotonic() Clock {
	return Func(func() int64 { return clockGettime(unix.CLOCK_MONOTONIC) })
}

// Boottime returns CLOCK_BOOTTIME, which includes time spent suspended.
func Boottime() Clock {
	return Func(func() int64 { return clockGettime(unix.CLOCK_BOOTTIME) })
}

func clockGettime(id int32) int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(id, &ts); err != nil {
		return runtimeNanos()
	}
	return ts.Nano()
}
