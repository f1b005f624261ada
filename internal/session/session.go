package session

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pilotguru/sensorlog/internal/clock"
	"github.com/pilotguru/sensorlog/internal/diskspace"
	"github.com/pilotguru/sensorlog/internal/frame"
	"github.com/pilotguru/sensorlog/internal/jsonlog"
	"github.com/pilotguru/sensorlog/internal/metrics"
)

// Options configures a Session. Zero values select the host clocks, the
// default domain assignment (frames pausable, everything else always-on),
// a 2s free-space sampler and no-op collaborators.
type Options struct {
	AlwaysOn clock.Clock
	Pausable clock.Clock

	// FrameDomain is the clock domain of FrameSample.SensorTimestamp.
	FrameDomain clock.Domain
	// SensorDomain is the clock domain of gyroscope, accelerometer and
	// location timestamps.
	SensorDomain clock.Domain

	WarmupSamples int

	Space    *diskspace.Sampler
	Notifier Notifier
	Fatal    FatalReporter
	Metrics  metrics.Recorder
}

// Session records sensor, location and frame events into per-stream JSON
// logs between Start and Stop. It can be started and stopped repeatedly.
//
// Start and Stop hold the write side of mu for their whole duration. Every
// event handler holds the read side while it appends, so different streams
// append concurrently but never interleave with a lifecycle transition.
// streamMu additionally serializes producers that share a stream.
type Session struct {
	opts       Options
	reconciler clock.Reconciler

	mu          sync.RWMutex
	isRecording bool
	writers     [numStreams]*jsonlog.Writer
	files       []string
	dir         string
	startedAt   time.Time
	offset      int64
	fpsSink     StatusSink
	cameraSink  StatusSink

	streamMu [numStreams]sync.Mutex
	counts   [numStreams]atomic.Int64

	// Guarded by streamMu[idxFrames].
	sequencer *frame.Sequencer
	fps       frame.FPSMeter
}

// New creates an idle Session.
func New(opts Options) *Session {
	if opts.AlwaysOn == nil {
		opts.AlwaysOn = clock.Boottime()
	}
	if opts.Pausable == nil {
		opts.Pausable = clock.Monotonic()
	}
	if opts.FrameDomain == "" {
		opts.FrameDomain = clock.Pausable
	}
	if opts.SensorDomain == "" {
		opts.SensorDomain = clock.AlwaysOn
	}
	if opts.Space == nil {
		opts.Space = diskspace.NewSampler(diskspace.DefaultInterval)
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{}
	}
	if opts.Fatal == nil {
		opts.Fatal = ExitReporter{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}

	return &Session{
		opts: opts,
		reconciler: clock.Reconciler{
			AlwaysOn: opts.AlwaysOn,
			Pausable: opts.Pausable,
			Samples:  opts.WarmupSamples,
		},
		sequencer: frame.NewSequencer(),
	}
}

// Start opens the four stream logs in dir and begins accepting events. fps
// and camera are optional status sinks updated on every frame. Calling Start
// while recording is a programming error and panics.
func (s *Session) Start(dir string, fps, camera StatusSink) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRecording {
		panic("session: Start called while already recording")
	}
	s.isRecording = true

	s.dir = dir
	s.startedAt = time.Now()
	s.fpsSink = fps
	s.cameraSink = camera
	s.offset = s.reconciler.Offset()
	s.sequencer.Reset()
	s.fps.Reset()

	for i, name := range Streams {
		s.counts[i].Store(0)
		w, err := jsonlog.Open(dir, name)
		if err != nil {
			s.writers[i] = nil
			s.fatal(name, fmt.Sprintf("Error trying to initialize %s JSON writer.", name), err)
			continue
		}
		s.writers[i] = w
		s.files = append(s.files, w.Path())
	}

	s.opts.Metrics.SessionStarted()
	slog.Info("Recording session started", "dir", dir, "clock_offset_ns", s.offset,
		"frame_domain", s.opts.FrameDomain, "sensor_domain", s.opts.SensorDomain)
}

// Stop closes every stream log, hands the written files to the Notifier and
// resets per-session frame numbering. Calling Stop while idle is a
// programming error and panics.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRecording {
		panic("session: Stop called while not recording")
	}
	s.isRecording = false

	written := make([]any, 0, 2*numStreams)
	for i, name := range Streams {
		w := s.writers[i]
		s.writers[i] = nil
		if w == nil {
			continue
		}
		written = append(written, w.Name(), w.Count())
		if err := w.Close(); err != nil {
			s.fatal(name, fmt.Sprintf("Error trying to close %s JSON writer.", name), err)
		}
	}

	files := make([]string, len(s.files))
	copy(files, s.files)
	s.opts.Notifier.Notify(files)
	s.files = s.files[:0]

	s.sequencer.Reset()
	s.fpsSink = nil
	s.cameraSink = nil

	s.opts.Metrics.SessionStopped()
	slog.Debug("Recording session clock offset", "always_on_minus_pausable_ns", s.offset)
	slog.Info("Recording session stopped", append([]any{"dir", s.dir}, written...)...)
}

// IsRecording reports whether the session is between Start and Stop.
func (s *Session) IsRecording() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRecording
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	if s.IsRecording() {
		return StateRecording
	}
	return StateIdle
}

// ClockOffset returns the always-on minus pausable offset computed at the
// last Start.
func (s *Session) ClockOffset() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset
}

// Info returns a snapshot of the active session, or nil when idle.
func (s *Session) Info() *Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRecording {
		return nil
	}

	info := &Info{
		Dir:         s.dir,
		StartTime:   s.startedAt,
		ClockOffset: s.offset,
		Files:       make([]string, len(s.files)),
		Records:     make(map[string]int64, numStreams),
	}
	copy(info.Files, s.files)
	for i, name := range Streams {
		info.Records[name] = s.counts[i].Load()
	}
	return info
}

// OnGyro appends a rotation rate sample. Ignored while idle.
func (s *Session) OnGyro(e SensorSample) {
	s.writeVector(idxRotations, e)
}

// OnAccel appends an acceleration sample. Ignored while idle.
func (s *Session) OnAccel(e SensorSample) {
	s.writeVector(idxAccelerations, e)
}

func (s *Session) writeVector(idx int, e SensorSample) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRecording {
		return
	}

	s.streamMu[idx].Lock()
	defer s.streamMu[idx].Unlock()

	s.append(idx, jsonlog.Record{
		{Key: "x", Value: jsonlog.Float64(e.Values.X)},
		{Key: "y", Value: jsonlog.Float64(e.Values.Y)},
		{Key: "z", Value: jsonlog.Float64(e.Values.Z)},
		{Key: "time_usec", Value: jsonlog.Int(s.timeUsec(e.Timestamp, s.opts.SensorDomain))},
	})
}

// OnLocation appends a position fix. Ignored while idle.
func (s *Session) OnLocation(e LocationSample) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRecording {
		return
	}

	s.streamMu[idxLocations].Lock()
	defer s.streamMu[idxLocations].Unlock()

	s.append(idxLocations, jsonlog.Record{
		{Key: "lat", Value: jsonlog.Float64(e.Latitude)},
		{Key: "lon", Value: jsonlog.Float64(e.Longitude)},
		{Key: "accuracy_m", Value: jsonlog.Float32(e.AccuracyM)},
		{Key: "speed_m_s", Value: jsonlog.Float32(e.SpeedMS)},
		{Key: "bearing_degrees", Value: jsonlog.Float32(e.BearingDegrees)},
		{Key: "time_usec", Value: jsonlog.Int(s.timeUsec(e.Timestamp, s.opts.SensorDomain))},
	})
}

// OnFrame appends a frame record with a per-session frame id and a
// timestamp translated into the always-on domain, then refreshes the status
// sinks. Ignored while idle.
func (s *Session) OnFrame(e FrameSample) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRecording {
		return
	}

	s.streamMu[idxFrames].Lock()
	defer s.streamMu[idxFrames].Unlock()

	id := s.sequencer.Normalize(e.FrameNumber)
	ok := s.append(idxFrames, jsonlog.Record{
		{Key: "frame_id", Value: jsonlog.Int(id)},
		{Key: "sensor_timestamp", Value: jsonlog.Int(e.SensorTimestamp)},
		{Key: "time_usec", Value: jsonlog.Int(s.timeUsec(e.SensorTimestamp, s.opts.FrameDomain))},
	})
	if !ok {
		return
	}

	s.fps.Observe(e.SensorTimestamp)
	s.updateStatus(e)
}

func (s *Session) timeUsec(ts int64, from clock.Domain) int64 {
	return clock.NanosToMicros(clock.Translate(ts, from, s.offset))
}

// append writes rec to stream idx. Caller holds mu.RLock and streamMu[idx].
func (s *Session) append(idx int, rec jsonlog.Record) bool {
	w := s.writers[idx]
	if w == nil {
		return false
	}
	name := w.Name()
	if err := w.Append(rec); err != nil {
		s.fatal(name, fmt.Sprintf("Error writing %s JSON.", name), err)
		return false
	}
	s.counts[idx].Add(1)
	s.opts.Metrics.RecordAppended(name)
	return true
}

// updateStatus pushes FPS and camera text to the sinks. A misbehaving sink
// must not affect logging, so panics are contained here.
func (s *Session) updateStatus(e FrameSample) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Status update failed", "panic", r)
		}
	}()

	if s.fpsSink != nil {
		s.fpsSink.SetText(FPSText(s.fps.FPS()))
	}
	if s.cameraSink != nil {
		gb := s.opts.Space.GBAvailable(s.dir, e.SensorTimestamp)
		s.cameraSink.SetText(CameraText(e.Metadata, gb))
	}
}

func (s *Session) fatal(stream, msg string, err error) {
	s.opts.Metrics.FatalError(stream)
	slog.Error(msg, "stream", stream, "error", err)
	s.opts.Fatal.Fatal(msg, err)
}
