// Package metrics exposes Prometheus instrumentation for the pinch pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tick outcomes.
const (
	TickProcessed = "processed"
	TickThrottled = "throttled"
	TickBusy      = "busy"
	TickNoFrame   = "no_frame"
	TickDisabled  = "disabled"
	TickDiscarded = "discarded"
	TickError     = "error"
)

// Scheduler metrics
var (
	// TicksTotal counts host ticks by outcome.
	TicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinchgrab_ticks_total",
			Help: "Host ticks by outcome (processed, throttled, busy, no_frame, disabled, discarded, error)",
		},
		[]string{"outcome"},
	)

	// DetectDuration tracks landmark source latency in seconds.
	DetectDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pinchgrab_detect_duration_seconds",
			Help:    "Landmark detection latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .075, .1, .25, .5, 1},
		},
	)

	// HandsDetected tracks the number of hands in the last processed tick.
	HandsDetected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pinchgrab_hands_detected",
			Help: "Hands detected in the last processed tick",
		},
	)
)

// Grab metrics
var (
	// GrabEventsTotal counts grab state machine transitions.
	GrabEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinchgrab_grab_events_total",
			Help: "Grab transitions by kind (grabbed, released)",
		},
		[]string{"kind"},
	)

	// Holding is 1 while an object is held, 0 otherwise.
	Holding = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pinchgrab_holding",
			Help: "Whether an object is currently held (1) or not (0)",
		},
	)
)

// Server metrics
var (
	// SceneClients tracks connected WebSocket scene subscribers.
	SceneClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pinchgrab_scene_clients",
			Help: "Connected WebSocket scene subscribers",
		},
	)

	// SceneFramesDropped counts frames not delivered to a slow subscriber.
	SceneFramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pinchgrab_scene_frames_dropped_total",
			Help: "Scene frames dropped because a subscriber's buffer was full",
		},
	)
)
