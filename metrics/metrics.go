// Package metrics exports the pipeline's prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catnip_frames_captured_total",
		Help: "Frames successfully read from the capture device.",
	})

	CaptureFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catnip_capture_failures_total",
		Help: "Capture calls that returned no frame.",
	})

	EventsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catnip_events_started_total",
		Help: "Motion events that began recording.",
	})

	EventsEnded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catnip_events_ended_total",
		Help: "Motion events that finished recording.",
	})

	SinkFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catnip_sink_failures_total",
		Help: "Failed writes to a recording sink.",
	})

	DetectCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catnip_detect_cycle_duration_seconds",
		Help:    "Wall-clock duration of one detection cycle.",
		Buckets: prometheus.DefBuckets,
	})
)
