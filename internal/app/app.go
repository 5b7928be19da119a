// Package app wires the pinch pipeline together and drives it at a capped rate.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ayusman/pinchgrab/internal/capture"
	"github.com/ayusman/pinchgrab/internal/detector"
	"github.com/ayusman/pinchgrab/internal/geom"
	"github.com/ayusman/pinchgrab/internal/gesture"
	"github.com/ayusman/pinchgrab/internal/grab"
	"github.com/ayusman/pinchgrab/internal/render"
	"github.com/ayusman/pinchgrab/internal/scene"
)

// Pipeline timing defaults.
const (
	// DefaultTargetRateHz caps how often frames are actually processed.
	DefaultTargetRateHz = 20
	// DefaultHostRateHz is the rate of the host tick, like a display refresh.
	DefaultHostRateHz = 60
)

// Config holds configuration options for the application.
type Config struct {
	Camera   capture.Camera
	Detector detector.Detector
	Renderer render.Renderer

	// Objects is the initial scene, in hit-test priority order.
	Objects []scene.Object

	PinchThreshold float64
	HitBox         geom.Size
	TargetRateHz   float64
	HostRateHz     float64

	Clock  clockwork.Clock
	Logger *slog.Logger
}

// App owns the pipeline state: the object registry and the grab machine live
// here and are only touched from the pipeline goroutine.
type App struct {
	camera     capture.Camera
	detector   detector.Detector
	renderer   render.Renderer
	classifier *gesture.Classifier
	machine    *grab.Machine
	registry   *scene.Registry
	clock      clockwork.Clock
	logger     *slog.Logger

	minInterval  time.Duration
	hostInterval time.Duration
	// slack absorbs host tick jitter and rounding so a tick landing just
	// short of minInterval still counts.
	slack time.Duration
	epoch time.Time

	// inflight holds a token while a landmark request is outstanding.
	inflight chan struct{}

	mu          sync.Mutex
	enabled     bool
	initialized bool
	cancel      context.CancelFunc
	done        chan struct{}

	// pipeline goroutine only
	lastProcessed time.Time
	processedOnce bool
	seq           uint64
	width, height int
	pauseShown    bool
}

// New creates an App. It fails if the initial objects are invalid.
func New(config Config) (*App, error) {
	if config.Camera == nil {
		return nil, errors.New("app: camera is required")
	}
	if config.Detector == nil {
		return nil, errors.New("app: detector is required")
	}

	registry, err := scene.NewRegistry(config.Objects)
	if err != nil {
		return nil, fmt.Errorf("app: initial objects: %w", err)
	}

	if config.TargetRateHz <= 0 {
		config.TargetRateHz = DefaultTargetRateHz
	}
	if config.HostRateHz <= 0 {
		config.HostRateHz = DefaultHostRateHz
	}
	if config.Renderer == nil {
		config.Renderer = render.Nop{}
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	hostInterval := rateInterval(config.HostRateHz)

	return &App{
		camera:       config.Camera,
		detector:     config.Detector,
		renderer:     config.Renderer,
		classifier:   gesture.NewClassifier(config.PinchThreshold),
		machine:      grab.NewMachine(config.HitBox),
		registry:     registry,
		clock:        config.Clock,
		logger:       config.Logger,
		minInterval:  rateInterval(config.TargetRateHz),
		hostInterval: hostInterval,
		slack:        hostInterval / 2,
		epoch:        config.Clock.Now(),
		inflight:     make(chan struct{}, 1),
		enabled:      true,
	}, nil
}

func rateInterval(hz float64) time.Duration {
	return time.Duration(float64(time.Second) / hz)
}

// MinInterval returns the minimum time between processed ticks.
func (a *App) MinInterval() time.Duration {
	return a.minInterval
}

// SetEnabled pauses or resumes processing. While disabled, host ticks are
// no-ops and any held object is released on the next tick.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether processing is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// Running reports whether the pipeline loop is active.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}

// Start initializes the landmark source (once), opens the camera and starts
// the pipeline loop. If initialization fails the loop never starts. The loop
// runs until Stop is called or ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}

	if !a.initialized {
		if err := a.detector.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize landmark source: %w", err)
		}
		a.initialized = true
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.runPipeline(runCtx, a.done)

	a.logger.Info("pipeline started",
		"min_interval", a.minInterval,
		"host_interval", a.hostInterval,
		"pinch_threshold", a.classifier.Threshold(),
		"objects", a.registry.Len(),
	)
	return nil
}

// Stop halts the pipeline loop and closes the camera. No tick fires after
// Stop returns; a landmark request still outstanding is discarded when it
// completes.
func (a *App) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done

	if err := a.camera.Close(); err != nil {
		a.logger.Warn("closing camera", "error", err)
	}

	a.logger.Info("pipeline stopped")
}

// Close stops the pipeline and releases the landmark source.
func (a *App) Close() error {
	a.Stop()
	return a.detector.Close()
}
