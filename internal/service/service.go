package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pilotguru/sensorlog/internal/clock"
	"github.com/pilotguru/sensorlog/internal/config"
	"github.com/pilotguru/sensorlog/internal/diskspace"
	"github.com/pilotguru/sensorlog/internal/metrics"
	"github.com/pilotguru/sensorlog/internal/session"
	"github.com/pilotguru/sensorlog/internal/source"
)

// ErrBusy is returned by Record while another recording is in progress.
var ErrBusy = errors.New("a recording is already in progress")

// Service is the sensorlog service interface used by the CLI and the HTTP
// status server.
type Service interface {
	// Recording operations
	Record(ctx context.Context, name string) (*Result, error)
	Status() (session.State, *session.Info)

	// Session directory operations
	Verify(dir string) (map[string]int, error)
	ListSessions() ([]SessionSummary, error)

	GetConfig() *config.Config
	GetLastError() string
}

// Result summarizes a finished recording.
type Result struct {
	SessionID   string           `json:"session_id" yaml:"session_id"`
	Dir         string           `json:"dir" yaml:"dir"`
	StartTime   time.Time        `json:"start_time" yaml:"start_time"`
	Duration    time.Duration    `json:"duration" yaml:"duration"`
	ClockOffset int64            `json:"clock_offset_ns" yaml:"clock_offset_ns"`
	Files       []string         `json:"files" yaml:"files"`
	Records     map[string]int64 `json:"records" yaml:"records"`
	// Produced counts what each simulated source emitted while recording.
	Produced    map[string]int64 `json:"produced" yaml:"produced"`
}

// SessionSummary describes a recorded session directory.
type SessionSummary struct {
	Name      string    `json:"name"`
	Dir       string    `json:"dir"`
	SessionID string    `json:"session_id,omitempty"`
	Size      int64     `json:"size"`
	SizeHuman string    `json:"size_human"`
	ModTime   time.Time `json:"mod_time"`
}

// Options wires optional collaborators. Zero values select the host clocks,
// LogNotifier chaining, ExitReporter and no metrics.
type Options struct {
	AlwaysOn clock.Clock
	Pausable clock.Clock

	FPSSink    session.StatusSink
	CameraSink session.StatusSink

	Fatal   session.FatalReporter
	Metrics metrics.Recorder

	// Now returns the wall clock used for session directory names.
	Now func() time.Time
}

// SensorLogService is the main service implementation.
type SensorLogService struct {
	cfg     *config.Config
	opts    Options
	session *session.Session
	counter *source.FrameCounter

	manifest *ManifestNotifier

	// Held for the whole of Record.
	recordMu sync.Mutex

	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a service around a single reusable recording session.
func New(cfg *config.Config, opts Options) *SensorLogService {
	if opts.AlwaysOn == nil {
		opts.AlwaysOn = clock.ForDomain(clock.AlwaysOn)
	}
	if opts.Pausable == nil {
		opts.Pausable = clock.ForDomain(clock.Pausable)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &SensorLogService{
		cfg:     cfg,
		opts:    opts,
		counter: source.NewFrameCounter(cfg.Simulation.FrameIDStart),
	}
	s.manifest = &ManifestNotifier{Next: session.LogNotifier{}}

	fatal := opts.Fatal
	if fatal == nil {
		fatal = session.ExitReporter{}
	}

	s.session = session.New(session.Options{
		AlwaysOn:      opts.AlwaysOn,
		Pausable:      opts.Pausable,
		FrameDomain:   cfg.FrameDomain(),
		SensorDomain:  cfg.SensorDomain(),
		WarmupSamples: cfg.Clock.WarmupSamples,
		Space:         diskspace.NewSampler(cfg.Status.FreeSpaceInterval),
		Notifier:      s.manifest,
		Fatal: session.FatalFunc(func(msg string, err error) {
			s.setLastError(fmt.Sprintf("%s %v", msg, err))
			fatal.Fatal(msg, err)
		}),
		Metrics: opts.Metrics,
	})
	return s
}

// Record runs the simulated producers against a new session until ctx is
// done or the configured duration elapses, then stops the session.
func (s *SensorLogService) Record(ctx context.Context, name string) (*Result, error) {
	if !s.recordMu.TryLock() {
		return nil, ErrBusy
	}
	defer s.recordMu.Unlock()

	s.clearLastError()

	startTime := s.opts.Now()
	dir, err := createSessionDir(SessionDir(s.cfg.Output.Directory, s.cfg.Output.SessionPrefix, name, startTime))
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to create session directory: %v", err))
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	id := uuid.New().String()
	s.manifest.Begin(id, dir, startTime)

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if d := s.cfg.Simulation.Duration; d > 0 {
		runCtx, cancel = context.WithTimeout(ctx, d)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	slog.Info("Starting recording", "session_id", id, "dir", dir)
	s.session.Start(dir, s.opts.FPSSink, s.opts.CameraSink)

	sim := s.cfg.Simulation
	sensorClock := s.clockFor(s.cfg.SensorDomain())
	gyro := &source.Gyro{RateHz: sim.GyroHz, Clock: sensorClock}
	accel := &source.Accel{RateHz: sim.AccelHz, Clock: sensorClock}
	loc := &source.Location{
		RateHz:         sim.LocationHz,
		Clock:          sensorClock,
		Latitude:       55.7558,
		Longitude:      37.6173,
		SpeedMS:        13.9,
		BearingDegrees: 45,
	}
	frames := &source.Frames{FPS: sim.FrameFPS, Clock: s.clockFor(s.cfg.FrameDomain()), Counter: s.counter}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return gyro.Run(gctx, s.session.OnGyro) })
	g.Go(func() error { return accel.Run(gctx, s.session.OnAccel) })
	g.Go(func() error { return loc.Run(gctx, s.session.OnLocation) })
	g.Go(func() error { return frames.Run(gctx, s.session.OnFrame) })
	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		runErr = nil
	}

	info := s.session.Info()
	s.session.Stop()

	produced := map[string]int64{
		session.StreamRotations:     gyro.Produced(),
		session.StreamAccelerations: accel.Produced(),
		session.StreamLocations:     loc.Produced(),
		session.StreamFrames:        frames.Produced(),
	}
	slog.Debug("Sources stopped", "session_id", id, "produced", produced)

	if runErr != nil {
		s.setLastError(fmt.Sprintf("Recording failed: %v", runErr))
		return nil, fmt.Errorf("recording failed: %w", runErr)
	}

	result := &Result{
		SessionID: id,
		Dir:       dir,
		StartTime: startTime,
		Duration:  s.opts.Now().Sub(startTime),
		Produced:  produced,
	}
	if info != nil {
		result.ClockOffset = info.ClockOffset
		result.Files = info.Files
		result.Records = info.Records
	}

	slog.Info("Recording finished", "session_id", id, "dir", dir, "duration", result.Duration)
	return result, nil
}

func (s *SensorLogService) clockFor(d clock.Domain) clock.Clock {
	if d == clock.Pausable {
		return s.opts.Pausable
	}
	return s.opts.AlwaysOn
}

// Status returns the session state and, while recording, a snapshot of it.
func (s *SensorLogService) Status() (session.State, *session.Info) {
	return s.session.State(), s.session.Info()
}

// GetConfig returns the current configuration.
func (s *SensorLogService) GetConfig() *config.Config {
	return s.cfg
}

// ListSessions returns the session directories under the output directory,
// newest first.
func (s *SensorLogService) ListSessions() ([]SessionSummary, error) {
	root := s.cfg.Output.Directory

	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	prefix := s.cfg.Output.SessionPrefix + "_"
	var sessions []SessionSummary
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}

		dir := filepath.Join(root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			slog.Warn("Failed to get session directory info", "dir", dir, "error", err)
			continue
		}

		summary := SessionSummary{
			Name:    entry.Name(),
			Dir:     dir,
			ModTime: info.ModTime(),
		}
		if m, err := ReadManifest(dir); err == nil {
			summary.SessionID = m.SessionID
			for _, f := range m.Files {
				summary.Size += f.Size
			}
		} else {
			slog.Debug("Session without manifest", "dir", dir, "error", err)
		}
		summary.SizeHuman = formatBytes(summary.Size)
		sessions = append(sessions, summary)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ModTime.After(sessions[j].ModTime)
	})
	return sessions, nil
}

// GetLastError returns the last error message (thread-safe)
func (s *SensorLogService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

func (s *SensorLogService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

func (s *SensorLogService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// maxSessionDirSuffix bounds the _2, _3, ... suffixes tried when a session
// directory for the same second already exists.
const maxSessionDirSuffix = 1000

// createSessionDir creates base, or base_<n> for the first free n when
// base is taken. An existing session directory is never reused.
func createSessionDir(base string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(base), 0755); err != nil {
		return "", err
	}

	dir := base
	for n := 2; ; n++ {
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) || n > maxSessionDirSuffix {
			return "", err
		}
		dir = fmt.Sprintf("%s_%d", base, n)
	}
}

// SessionDir builds <root>/<prefix>[_<name>]_<YYYYMMDD_HHMMSS>.
func SessionDir(root, prefix, name string, t time.Time) string {
	parts := []string{prefix}
	if clean := cleanFileName(name); clean != "" {
		parts = append(parts, clean)
	}
	parts = append(parts, t.Format("20060102_150405"))
	return filepath.Join(root, strings.Join(parts, "_"))
}

// cleanFileName keeps ASCII letters, digits and spaces, then replaces spaces
// with underscores.
func cleanFileName(name string) string {
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == ' ' {
			result.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(result.String()), " ", "_")
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
