package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/pilotguru/sensorlog/internal/clock"
	"github.com/pilotguru/sensorlog/internal/session"
)

// ErrNoClock is returned by Run when a source has no clock to stamp samples.
var ErrNoClock = errors.New("source has no clock")

func validate(name string, hz float64, c clock.Clock) error {
	if hz <= 0 {
		return fmt.Errorf("%s: rate must be positive, got %g Hz", name, hz)
	}
	if c == nil {
		return fmt.Errorf("%s: %w", name, ErrNoClock)
	}
	return nil
}

// interval converts a rate in Hz into a ticker period.
func interval(hz float64) time.Duration {
	if hz <= 0 {
		return time.Second
	}
	d := time.Duration(float64(time.Second) / hz)
	if d <= 0 {
		d = time.Nanosecond
	}
	return d
}

// ticker drives fn at the given rate until ctx is done, then returns
// ctx.Err().
func ticker(ctx context.Context, name string, hz float64, fn func(step int64)) error {
	t := time.NewTicker(interval(hz))
	defer t.Stop()

	slog.Debug("Source started", "source", name, "rate_hz", hz)

	var step int64
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Source stopped", "source", name, "produced", step)
			return ctx.Err()
		case <-t.C:
			fn(step)
			step++
		}
	}
}

// Gyro simulates a gyroscope reporting rotation rates in rad/s.
type Gyro struct {
	RateHz float64
	Clock  clock.Clock

	produced atomic.Int64
}

// Run emits samples until ctx is done and returns ctx.Err().
func (g *Gyro) Run(ctx context.Context, emit func(session.SensorSample)) error {
	if err := validate("gyro", g.RateHz, g.Clock); err != nil {
		return err
	}
	return ticker(ctx, "gyro", g.RateHz, func(step int64) {
		phase := float64(step) * 0.01
		emit(session.SensorSample{
			Values: session.Vector{
				X: 0.001*math.Sin(phase*2) + rand.Float64()*0.0005,
				Y: 0.001*math.Cos(phase*2) + rand.Float64()*0.0005,
				Z: 0.0005 + rand.Float64()*0.0002,
			},
			Timestamp: g.Clock.Nanos(),
		})
		g.produced.Add(1)
	})
}

// Produced returns the number of emitted samples.
func (g *Gyro) Produced() int64 { return g.produced.Load() }

// Accel simulates an accelerometer reporting m/s^2 including gravity.
type Accel struct {
	RateHz float64
	Clock  clock.Clock

	produced atomic.Int64
}

// Run emits samples until ctx is done and returns ctx.Err().
func (a *Accel) Run(ctx context.Context, emit func(session.SensorSample)) error {
	if err := validate("accel", a.RateHz, a.Clock); err != nil {
		return err
	}
	return ticker(ctx, "accel", a.RateHz, func(step int64) {
		phase := float64(step) * 0.01
		emit(session.SensorSample{
			Values: session.Vector{
				X: 0.02*math.Sin(phase) + rand.Float64()*0.005,
				Y: 0.01*math.Cos(phase) + rand.Float64()*0.005,
				Z: 9.81 + rand.Float64()*0.02,
			},
			Timestamp: a.Clock.Nanos(),
		})
		a.produced.Add(1)
	})
}

// Produced returns the number of emitted samples.
func (a *Accel) Produced() int64 { return a.produced.Load() }

const metersPerDegree = 111_320.0

// Location simulates a receiver moving at constant speed and bearing.
type Location struct {
	RateHz float64
	Clock  clock.Clock

	// Starting point in degrees.
	Latitude, Longitude float64
	SpeedMS             float32
	BearingDegrees      float32

	produced atomic.Int64
}

// Run emits fixes until ctx is done and returns ctx.Err().
func (l *Location) Run(ctx context.Context, emit func(session.LocationSample)) error {
	if err := validate("location", l.RateHz, l.Clock); err != nil {
		return err
	}
	lat, lon := l.Latitude, l.Longitude
	bearing := float64(l.BearingDegrees) * math.Pi / 180
	dt := interval(l.RateHz).Seconds()

	return ticker(ctx, "location", l.RateHz, func(int64) {
		dist := float64(l.SpeedMS) * dt
		lat += dist * math.Cos(bearing) / metersPerDegree
		lon += dist * math.Sin(bearing) / (metersPerDegree * math.Cos(lat*math.Pi/180))

		emit(session.LocationSample{
			Latitude:       lat,
			Longitude:      lon,
			AccuracyM:      float32(3 + rand.Float64()*2),
			SpeedMS:        l.SpeedMS,
			BearingDegrees: l.BearingDegrees,
			Timestamp:      l.Clock.Nanos(),
		})
		l.produced.Add(1)
	})
}

// Produced returns the number of emitted fixes.
func (l *Location) Produced() int64 { return l.produced.Load() }

// FrameCounter numbers frames across the lifetime of a camera, independent
// of recording sessions.
type FrameCounter struct {
	next atomic.Int64
}

// NewFrameCounter returns a counter whose first frame is start.
func NewFrameCounter(start int64) *FrameCounter {
	c := &FrameCounter{}
	c.next.Store(start)
	return c
}

// Next returns the next frame number.
func (c *FrameCounter) Next() int64 {
	return c.next.Add(1) - 1
}

// Frames simulates a camera delivering frames with capture metadata.
type Frames struct {
	FPS     float64
	Clock   clock.Clock
	Counter *FrameCounter

	produced atomic.Int64
}

// Run emits frames until ctx is done and returns ctx.Err().
func (f *Frames) Run(ctx context.Context, emit func(session.FrameSample)) error {
	if err := validate("frames", f.FPS, f.Clock); err != nil {
		return err
	}
	if f.Counter == nil {
		f.Counter = NewFrameCounter(0)
	}

	return ticker(ctx, "frames", f.FPS, func(step int64) {
		emit(session.FrameSample{
			FrameNumber:     f.Counter.Next(),
			SensorTimestamp: f.Clock.Nanos(),
			Metadata:        simulatedMetadata(step),
		})
		f.produced.Add(1)
	})
}

// Produced returns the number of emitted frames.
func (f *Frames) Produced() int64 { return f.produced.Load() }

// simulatedMetadata reports continuous auto-focus with a slowly drifting
// focus distance. Every 30th frame arrives without ISO, as cameras
// sometimes omit it.
func simulatedMetadata(step int64) *session.CaptureMetadata {
	af := session.AFModeContinuousVideo
	wb := session.WhiteBalanceAuto
	dist := float32(0.2 + 0.1*math.Sin(float64(step)*0.05))
	meta := &session.CaptureMetadata{
		AFMode:        &af,
		FocusDistance: &dist,
		WhiteBalance:  &wb,
	}
	if step%30 != 0 {
		iso := int32(100 + 50*(step/30%4))
		meta.ISO = &iso
	}
	return meta
}
