package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sensorlog_records_total",
		Help: "Total number of records appended per stream",
	}, []string{"stream"})

	fatalErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sensorlog_fatal_errors_total",
		Help: "Total number of unrecoverable stream I/O failures",
	}, []string{"stream"})

	sessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sensorlog_sessions_total",
		Help: "Total number of recording sessions started",
	})

	recordingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sensorlog_recording",
		Help: "1 while a recording session is active, 0 otherwise",
	})
)

// Recorder receives session events.
type Recorder interface {
	RecordAppended(stream string)
	FatalError(stream string)
	SessionStarted()
	SessionStopped()
}

// Prometheus publishes session events to the default registry.
type Prometheus struct{}

// RecordAppended counts one record written to stream.
func (Prometheus) RecordAppended(stream string) { recordsTotal.WithLabelValues(stream).Inc() }

// FatalError counts a fatal open, write or close failure on stream.
func (Prometheus) FatalError(stream string) { fatalErrorsTotal.WithLabelValues(stream).Inc() }

// SessionStarted counts the session and raises the recording gauge.
func (Prometheus) SessionStarted() {
	sessionsTotal.Inc()
	recordingGauge.Set(1)
}

// SessionStopped lowers the recording gauge.
func (Prometheus) SessionStopped() { recordingGauge.Set(0) }

// Nop discards all events.
type Nop struct{}

func (Nop) RecordAppended(string) {}
func (Nop) FatalError(string)     {}
func (Nop) SessionStarted()       {}
func (Nop) SessionStopped()       {}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
