package frame

import "math"

// unset marks a Sequencer without a baseline. Producer frame counters are
// never negative.
const unset int64 = -1

// Sequencer renumbers a producer-global frame counter so that each recording
// starts counting at zero.
type Sequencer struct {
	first int64
}

// NewSequencer returns a Sequencer with no baseline.
func NewSequencer() *Sequencer {
	return &Sequencer{first: unset}
}

// Normalize returns globalID relative to the first id seen since the last
// Reset. The first call records the baseline and returns 0.
func (s *Sequencer) Normalize(globalID int64) int64 {
	if s.first < 0 {
		s.first = globalID
	}
	return globalID - s.first
}

// Reset clears the baseline so the next Normalize starts a new sequence.
func (s *Sequencer) Reset() {
	s.first = unset
}

// Baseline reports the current baseline, if any.
func (s *Sequencer) Baseline() (int64, bool) {
	return s.first, s.first >= 0
}

// FPSMeter derives an instantaneous frame rate from the two most recent
// frame timestamps.
type FPSMeter struct {
	prev, current int64
}

// Observe records the timestamp (nanoseconds) of a new frame.
func (m *FPSMeter) Observe(ts int64) {
	m.prev = m.current
	m.current = ts
}

// FPS returns 1e9 / (current - previous), or NaN when fewer than two frames
// were observed or the interval is zero.
func (m *FPSMeter) FPS() float64 {
	if m.prev <= 0 {
		return math.NaN()
	}
	interval := m.current - m.prev
	if interval == 0 {
		return math.NaN()
	}
	return 1e9 / float64(interval)
}

// Reset forgets all observed frames.
func (m *FPSMeter) Reset() {
	m.prev, m.current = 0, 0
}
