package session

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilotguru/sensorlog/internal/clock"
	"github.com/pilotguru/sensorlog/internal/diskspace"
)

type fixedClock int64

func (c fixedClock) Nanos() int64 { return int64(c) }

type fatalCall struct {
	msg string
	err error
}

type testHarness struct {
	mu       sync.Mutex
	fatals   []fatalCall
	notified [][]string
	appended map[string]int
}

func (h *testHarness) Fatal(msg string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fatals = append(h.fatals, fatalCall{msg, err})
}

func (h *testHarness) Notify(paths []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notified = append(h.notified, paths)
}

func (h *testHarness) RecordAppended(stream string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appended[stream]++
}

func (h *testHarness) FatalError(string) {}
func (h *testHarness) SessionStarted()   {}
func (h *testHarness) SessionStopped()   {}

func newTestSession(t *testing.T, opts Options) (*Session, *testHarness) {
	t.Helper()

	h := &testHarness{appended: make(map[string]int)}
	if opts.AlwaysOn == nil {
		opts.AlwaysOn = fixedClock(2_500_000_000)
	}
	if opts.Pausable == nil {
		opts.Pausable = fixedClock(2_000_000_000)
	}
	if opts.Space == nil {
		opts.Space = &diskspace.Sampler{
			Interval: diskspace.DefaultInterval,
			Stat:     func(string) (uint64, error) { return 12_340_000_000, nil },
		}
	}
	opts.Fatal = h
	opts.Notifier = h
	opts.Metrics = h
	return New(opts), h
}

func readStream(t *testing.T, dir, name string) []map[string]any {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, name+".json"))
	require.NoError(t, err)

	var doc map[string][]map[string]any
	require.NoError(t, json.Unmarshal(data, &doc), "stream %s is not well-formed:\n%s", name, data)
	require.Len(t, doc, 1)

	list, ok := doc[name]
	require.True(t, ok, "missing top-level key %q", name)
	return list
}

func TestSession_LifecycleWritesAllStreams(t *testing.T) {
	dir := t.TempDir()
	s, h := newTestSession(t, Options{})

	assert.Equal(t, StateIdle, s.State())
	assert.Nil(t, s.Info())

	s.Start(dir, nil, nil)
	assert.True(t, s.IsRecording())
	assert.Equal(t, StateRecording, s.State())

	s.OnGyro(SensorSample{Values: Vector{X: 0.1, Y: 0.2, Z: 0.3}, Timestamp: 5_000_000})
	s.OnAccel(SensorSample{Values: Vector{X: 0, Y: 0, Z: 9.81}, Timestamp: 6_000_000})
	s.OnAccel(SensorSample{Values: Vector{X: 0, Y: 0.5, Z: 9.8}, Timestamp: 7_000_000})
	s.OnLocation(LocationSample{Latitude: 55.75, Longitude: 37.61, AccuracyM: 5, SpeedMS: 12.5, BearingDegrees: 90, Timestamp: 8_000_999})
	s.OnFrame(FrameSample{FrameNumber: 3, SensorTimestamp: 1_000_000})

	info := s.Info()
	require.NotNil(t, info)
	assert.Equal(t, dir, info.Dir)
	assert.Len(t, info.Files, 4)
	assert.Equal(t, int64(2), info.Records[StreamAccelerations])

	s.Stop()
	assert.False(t, s.IsRecording())

	rot := readStream(t, dir, StreamRotations)
	require.Len(t, rot, 1)
	assert.Equal(t, 0.1, rot[0]["x"])
	assert.Equal(t, float64(5000), rot[0]["time_usec"])

	assert.Len(t, readStream(t, dir, StreamAccelerations), 2)

	loc := readStream(t, dir, StreamLocations)
	require.Len(t, loc, 1)
	assert.Equal(t, 55.75, loc[0]["lat"])
	assert.Equal(t, float64(12.5), loc[0]["speed_m_s"])
	assert.Equal(t, float64(8000), loc[0]["time_usec"])

	assert.Len(t, readStream(t, dir, StreamFrames), 1)

	require.Len(t, h.notified, 1)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "rotations.json"),
		filepath.Join(dir, "accelerations.json"),
		filepath.Join(dir, "locations.json"),
		filepath.Join(dir, "frames.json"),
	}, h.notified[0])
	assert.Empty(t, h.fatals)
}

func TestSession_RecordFieldOrder(t *testing.T) {
	dir := t.TempDir()
	s, _ := newTestSession(t, Options{})

	s.Start(dir, nil, nil)
	s.OnLocation(LocationSample{Latitude: 1, Longitude: 2, AccuracyM: 3, SpeedMS: 4, BearingDegrees: 5, Timestamp: 6000})
	s.OnFrame(FrameSample{FrameNumber: 9, SensorTimestamp: 7000})
	s.Stop()

	loc, err := os.ReadFile(filepath.Join(dir, "locations.json"))
	require.NoError(t, err)
	assert.Contains(t, string(loc),
		`{"lat": 1, "lon": 2, "accuracy_m": 3, "speed_m_s": 4, "bearing_degrees": 5, "time_usec": 6}`)

	frames, err := os.ReadFile(filepath.Join(dir, "frames.json"))
	require.NoError(t, err)
	assert.Contains(t, string(frames), `{"frame_id": 0, "sensor_timestamp": 7000, "time_usec": 500007}`)
}

func TestSession_EventsOutsideRecordingAreDropped(t *testing.T) {
	dir := t.TempDir()
	s, h := newTestSession(t, Options{})

	s.OnGyro(SensorSample{Timestamp: 1})
	s.OnFrame(FrameSample{FrameNumber: 1, SensorTimestamp: 1})

	s.Start(dir, nil, nil)
	s.OnGyro(SensorSample{Timestamp: 2000})
	s.Stop()

	s.OnGyro(SensorSample{Timestamp: 3000})
	s.OnAccel(SensorSample{Timestamp: 3000})
	s.OnLocation(LocationSample{Timestamp: 3000})
	s.OnFrame(FrameSample{FrameNumber: 2, SensorTimestamp: 3000})

	rot := readStream(t, dir, StreamRotations)
	require.Len(t, rot, 1)
	assert.Equal(t, float64(2), rot[0]["time_usec"])
	assert.Empty(t, readStream(t, dir, StreamFrames))
	assert.Empty(t, h.fatals)
}

func TestSession_PreconditionViolationsPanic(t *testing.T) {
	s, _ := newTestSession(t, Options{})

	assert.Panics(t, func() { s.Stop() })

	s.Start(t.TempDir(), nil, nil)
	assert.Panics(t, func() { s.Start(t.TempDir(), nil, nil) })

	// The lock must have been released by the panicking call.
	assert.True(t, s.IsRecording())
	s.Stop()
	assert.Panics(t, func() { s.Stop() })
}

func TestSession_FrameIDsRestartEachSession(t *testing.T) {
	s, _ := newTestSession(t, Options{})

	first := t.TempDir()
	s.Start(first, nil, nil)
	for _, id := range []int64{107, 108, 110} {
		s.OnFrame(FrameSample{FrameNumber: id, SensorTimestamp: id * 1_000_000})
	}
	s.Stop()

	second := t.TempDir()
	s.Start(second, nil, nil)
	for _, id := range []int64{250, 251} {
		s.OnFrame(FrameSample{FrameNumber: id, SensorTimestamp: id * 1_000_000})
	}
	s.Stop()

	var got []float64
	for _, rec := range readStream(t, first, StreamFrames) {
		got = append(got, rec["frame_id"].(float64))
	}
	assert.Equal(t, []float64{0, 1, 3}, got)

	got = nil
	for _, rec := range readStream(t, second, StreamFrames) {
		got = append(got, rec["frame_id"].(float64))
	}
	assert.Equal(t, []float64{0, 1}, got)
}

func TestSession_FrameClockTranslation(t *testing.T) {
	dir := t.TempDir()
	s, _ := newTestSession(t, Options{
		AlwaysOn: fixedClock(10_500_000_000),
		Pausable: fixedClock(10_000_000_000),
	})

	s.Start(dir, nil, nil)
	assert.Equal(t, int64(500_000_000), s.ClockOffset())
	s.OnFrame(FrameSample{FrameNumber: 1, SensorTimestamp: 2_000_000_000})
	s.OnGyro(SensorSample{Timestamp: 2_000_000_000})
	s.Stop()

	frames := readStream(t, dir, StreamFrames)
	require.Len(t, frames, 1)
	assert.Equal(t, float64(2_000_000_000), frames[0]["sensor_timestamp"])
	assert.Equal(t, float64(2_500_000), frames[0]["time_usec"])

	rot := readStream(t, dir, StreamRotations)
	require.Len(t, rot, 1)
	assert.Equal(t, float64(2_000_000), rot[0]["time_usec"], "always-on timestamps are not translated")
}

func TestSession_ConfigurableDomains(t *testing.T) {
	dir := t.TempDir()
	s, _ := newTestSession(t, Options{
		AlwaysOn:     fixedClock(10_500_000_000),
		Pausable:     fixedClock(10_000_000_000),
		FrameDomain:  clock.AlwaysOn,
		SensorDomain: clock.Pausable,
	})

	s.Start(dir, nil, nil)
	s.OnFrame(FrameSample{FrameNumber: 1, SensorTimestamp: 2_000_000_000})
	s.OnAccel(SensorSample{Timestamp: 2_000_000_000})
	s.Stop()

	assert.Equal(t, float64(2_000_000), readStream(t, dir, StreamFrames)[0]["time_usec"])
	assert.Equal(t, float64(2_500_000), readStream(t, dir, StreamAccelerations)[0]["time_usec"])
}

func TestSession_StatusSinks(t *testing.T) {
	s, _ := newTestSession(t, Options{})

	var fpsTexts, cameraTexts []string
	fps := StatusFunc(func(text string) { fpsTexts = append(fpsTexts, text) })
	camera := StatusFunc(func(text string) { cameraTexts = append(cameraTexts, text) })

	iso := int32(400)
	dist := float32(2.3)
	af := AFModeOff
	wb := WhiteBalanceDaylight

	s.Start(t.TempDir(), fps, camera)
	s.OnFrame(FrameSample{FrameNumber: 1, SensorTimestamp: 1_000_000_000})
	s.OnFrame(FrameSample{
		FrameNumber:     2,
		SensorTimestamp: 3_100_000_000,
		Metadata:        &CaptureMetadata{AFMode: &af, FocusDistance: &dist, ISO: &iso, WhiteBalance: &wb},
	})
	s.Stop()

	require.Len(t, fpsTexts, 2)
	assert.Equal(t, "FPS: NaN", fpsTexts[0])
	assert.Equal(t, "FPS: 0.5", fpsTexts[1])

	require.Len(t, cameraTexts, 2)
	assert.Equal(t, "FOC: Auto,  ISO: NA,  WB: NA,  Free space: 0.00 Gb", cameraTexts[0])
	assert.Equal(t, "FOC: Fixed: 2.3,  ISO: 400,  WB: DAYLIGHT,  Free space: 12.34 Gb", cameraTexts[1])
}

func TestSession_PanickingSinkDoesNotAffectLogging(t *testing.T) {
	dir := t.TempDir()
	s, h := newTestSession(t, Options{})

	bad := StatusFunc(func(string) { panic("display gone") })
	s.Start(dir, bad, bad)
	s.OnFrame(FrameSample{FrameNumber: 1, SensorTimestamp: 1})
	s.OnFrame(FrameSample{FrameNumber: 2, SensorTimestamp: 2})
	s.Stop()

	assert.Len(t, readStream(t, dir, StreamFrames), 2)
	assert.Empty(t, h.fatals)
}

func TestSession_OpenFailureIsFatal(t *testing.T) {
	s, h := newTestSession(t, Options{})

	s.Start(filepath.Join(t.TempDir(), "missing"), nil, nil)
	require.Len(t, h.fatals, 4)
	assert.Contains(t, h.fatals[0].msg, StreamRotations)
	assert.Contains(t, h.fatals[3].msg, StreamFrames)

	// Events against failed streams are dropped rather than crashing.
	s.OnGyro(SensorSample{Timestamp: 1})
	s.OnFrame(FrameSample{FrameNumber: 1, SensorTimestamp: 1})
	s.Stop()

	require.Len(t, h.notified, 1)
	assert.Empty(t, h.notified[0])
}

func TestSession_ExistingLogIsNotTruncated(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, StreamFrames+".json")
	prior := []byte("{\n  \"frames\": [\n    {\"frame_id\": 0, \"sensor_timestamp\": 1, \"time_usec\": 1}\n  ]\n}\n")
	require.NoError(t, os.WriteFile(existing, prior, 0644))

	s, h := newTestSession(t, Options{})
	s.Start(dir, nil, nil)
	require.Len(t, h.fatals, 1)
	assert.Contains(t, h.fatals[0].msg, StreamFrames)
	assert.ErrorIs(t, h.fatals[0].err, os.ErrExist)

	s.OnFrame(FrameSample{FrameNumber: 5, SensorTimestamp: 5})
	s.OnGyro(SensorSample{Timestamp: 5})
	s.Stop()

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, prior, data)
	assert.Len(t, readStream(t, dir, StreamRotations), 1)
	require.Len(t, h.notified, 1)
	assert.Len(t, h.notified[0], 3)
}

func TestSession_WriteFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	s, h := newTestSession(t, Options{})

	s.Start(dir, nil, nil)
	s.OnGyro(SensorSample{Values: Vector{X: math.Inf(1)}, Timestamp: 1})
	s.Stop()

	require.Len(t, h.fatals, 1)
	assert.Equal(t, "Error writing rotations JSON.", h.fatals[0].msg)
	assert.Empty(t, readStream(t, dir, StreamRotations))
}

func TestSession_NotificationListIsPerSession(t *testing.T) {
	s, h := newTestSession(t, Options{})

	first, second := t.TempDir(), t.TempDir()
	s.Start(first, nil, nil)
	s.Stop()
	s.Start(second, nil, nil)
	s.Stop()

	require.Len(t, h.notified, 2)
	require.Len(t, h.notified[1], 4)
	for _, p := range h.notified[1] {
		assert.Equal(t, second, filepath.Dir(p))
	}
}

func TestSession_ConcurrentProducers(t *testing.T) {
	const perProducer = 500
	dir := t.TempDir()
	s, _ := newTestSession(t, Options{})

	s.Start(dir, nil, StatusFunc(func(string) {}))

	producers := []func(i int){
		func(i int) { s.OnGyro(SensorSample{Values: Vector{X: float64(i)}, Timestamp: int64(i) * 1000}) },
		func(i int) { s.OnAccel(SensorSample{Values: Vector{Z: 9.81}, Timestamp: int64(i) * 1000}) },
		func(i int) { s.OnLocation(LocationSample{Latitude: float64(i), Timestamp: int64(i) * 1000}) },
		func(i int) { s.OnFrame(FrameSample{FrameNumber: int64(i), SensorTimestamp: int64(i+1) * 1000}) },
		// A second gyro producer shares the rotations stream.
		func(i int) { s.OnGyro(SensorSample{Values: Vector{Y: float64(i)}, Timestamp: int64(i) * 1000}) },
	}

	var wg sync.WaitGroup
	for _, produce := range producers {
		wg.Add(1)
		go func(produce func(int)) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				produce(i)
			}
		}(produce)
	}
	wg.Wait()
	s.Stop()

	total := 0
	for _, name := range Streams {
		total += len(readStream(t, dir, name))
	}
	assert.Equal(t, len(producers)*perProducer, total)
	assert.Len(t, readStream(t, dir, StreamRotations), 2*perProducer)

	frames := readStream(t, dir, StreamFrames)
	for i, rec := range frames {
		require.Equal(t, float64(i), rec["frame_id"], "frames must keep arrival order")
	}
}

func TestSession_StopRacingProducers(t *testing.T) {
	dir := t.TempDir()
	s, h := newTestSession(t, Options{})

	s.Start(dir, nil, nil)

	done := make(chan struct{})
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-done:
					return
				default:
				}
				switch p {
				case 0:
					s.OnGyro(SensorSample{Timestamp: int64(i)})
				case 1:
					s.OnAccel(SensorSample{Timestamp: int64(i)})
				case 2:
					s.OnLocation(LocationSample{Timestamp: int64(i)})
				case 3:
					s.OnFrame(FrameSample{FrameNumber: int64(i), SensorTimestamp: int64(i)})
				}
			}
		}(p)
	}

	s.Stop()
	close(done)
	wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, name := range Streams {
		assert.Len(t, readStream(t, dir, name), h.appended[name], "stream %s", name)
	}
	assert.Empty(t, h.fatals)
}
