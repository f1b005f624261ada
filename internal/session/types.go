package session

import "time"

// State is the lifecycle state of a Session.
type State string

const (
	StateIdle      State = "IDLE"
	StateRecording State = "RECORDING"
)

// Stream names. Each stream is written to <name>.json in the session directory.
const (
	StreamRotations     = "rotations"
	StreamAccelerations = "accelerations"
	StreamLocations     = "locations"
	StreamFrames        = "frames"
)

// Streams lists every stream in the order writers are opened and closed.
var Streams = []string{StreamRotations, StreamAccelerations, StreamLocations, StreamFrames}

const (
	idxRotations = iota
	idxAccelerations
	idxLocations
	idxFrames
	numStreams
)

// Vector is a 3-axis sensor reading.
type Vector struct {
	X, Y, Z float64
}

// SensorSample is one gyroscope or accelerometer event. Timestamp is in
// nanoseconds of the sensor clock domain.
type SensorSample struct {
	Values    Vector
	Timestamp int64
}

// LocationSample is one position fix.
type LocationSample struct {
	Latitude  float64
	Longitude float64
	// AccuracyM is the horizontal accuracy radius in meters.
	AccuracyM float32
	SpeedMS   float32
	// BearingDegrees is the direction of travel, clockwise from north.
	BearingDegrees float32
	Timestamp      int64
}

// FrameSample is one completed camera capture.
type FrameSample struct {
	// FrameNumber is the producer's global counter. It increases across
	// sessions and is renumbered per session before being written.
	FrameNumber int64
	// SensorTimestamp is the exposure start in nanoseconds of the frame
	// clock domain.
	SensorTimestamp int64
	// Metadata is optional and only used for the camera status text.
	Metadata *CaptureMetadata
}

// Info is a snapshot of an active session.
type Info struct {
	Dir         string           `json:"dir" yaml:"dir"`
	StartTime   time.Time        `json:"start_time" yaml:"start_time"`
	ClockOffset int64            `json:"clock_offset_ns" yaml:"clock_offset_ns"`
	Files       []string         `json:"files" yaml:"files"`
	Records     map[string]int64 `json:"records" yaml:"records"`
}

// StatusSink receives human-readable status lines. Updates are best-effort.
type StatusSink interface {
	SetText(text string)
}

// StatusFunc adapts a function to StatusSink.
type StatusFunc func(text string)

// SetText implements StatusSink.
func (f StatusFunc) SetText(text string) { f(text) }

// Notifier is told about every file written by a session once it stops.
type Notifier interface {
	Notify(paths []string)
}

// FatalReporter handles unrecoverable failures. Implementations normally
// terminate the process.
type FatalReporter interface {
	Fatal(msg string, err error)
}
