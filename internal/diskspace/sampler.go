package diskspace

import (
	"log/slog"
	"time"
)

// DefaultInterval is the minimum spacing between file system queries.
const DefaultInterval = 2 * time.Second

// StatFunc returns the number of bytes available to unprivileged users on the
// file system holding path.
type StatFunc func(path string) (uint64, error)

// Sampler is a throttled free-space probe. It re-queries the file system at
// most once per Interval and serves the cached value in between.
//
// Sampler is not safe for concurrent use.
type Sampler struct {
	Interval time.Duration
	Stat     StatFunc

	lastQuery   int64
	availableGB float64
}

// NewSampler returns a Sampler using the host file system.
func NewSampler(interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{Interval: interval, Stat: BytesAvailable}
}

// GBAvailable returns free space at path in gigabytes (1e9 bytes). nowNanos
// is any monotonic nanosecond reading. A failed query keeps the previous
// value; the failure is logged and the query is not retried before the next
// interval.
func (s *Sampler) GBAvailable(path string, nowNanos int64) float64 {
	if nowNanos-s.lastQuery <= int64(s.Interval) {
		return s.availableGB
	}
	s.lastQuery = nowNanos

	stat := s.Stat
	if stat == nil {
		stat = BytesAvailable
	}
	bytes, err := stat(path)
	if err != nil {
		slog.Warn("Free space query failed", "path", path, "error", err)
		return s.availableGB
	}

	s.availableGB = float64(bytes) * 1e-9
	return s.availableGB
}
