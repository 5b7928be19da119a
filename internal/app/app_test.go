package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/pinchgrab/internal/capture"
	"github.com/ayusman/pinchgrab/internal/detector"
	"github.com/ayusman/pinchgrab/internal/geom"
	"github.com/ayusman/pinchgrab/internal/grab"
	"github.com/ayusman/pinchgrab/internal/metrics"
	"github.com/ayusman/pinchgrab/internal/render"
	"github.com/ayusman/pinchgrab/internal/scene"
)

var tickOutcomes = []string{
	metrics.TickProcessed,
	metrics.TickThrottled,
	metrics.TickBusy,
	metrics.TickNoFrame,
	metrics.TickDisabled,
	metrics.TickDiscarded,
	metrics.TickError,
}

func tickCount(outcome string) float64 {
	return testutil.ToFloat64(metrics.TicksTotal.WithLabelValues(outcome))
}

func totalTicks() float64 {
	var n float64
	for _, o := range tickOutcomes {
		n += tickCount(o)
	}
	return n
}

type recorder struct {
	mu     sync.Mutex
	frames []render.Frame
	ch     chan render.Frame
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan render.Frame, 64)}
}

func (r *recorder) Render(f render.Frame) {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
	select {
	case r.ch <- f:
	default:
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *recorder) last() render.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames[len(r.frames)-1]
}

type fixture struct {
	app      *App
	clock    *clockwork.FakeClock
	camera   *capture.MockCamera
	detector *detector.MockDetector
	renderer *recorder
}

func objects() []scene.Object {
	return []scene.Object{
		{ID: "banana", Asset: "/Banana.png", Position: geom.Point{X: 100, Y: 100}},
		{ID: "strawberry", Asset: "/Strawberry.png", Position: geom.Point{X: 300, Y: 150}},
		{ID: "watermelon", Asset: "/Watermelon.png", Position: geom.Point{X: 200, Y: 300}},
	}
}

// newFixture builds an App whose camera is open and whose detector is
// initialized, so tests can drive tick directly.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	mat := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { mat.Close() })

	f := &fixture{
		clock:    clockwork.NewFakeClock(),
		camera:   capture.NewMockCamera([]*gocv.Mat{&mat}, true),
		detector: detector.NewMockDetector(),
		renderer: newRecorder(),
	}

	a, err := New(Config{
		Camera:   f.camera,
		Detector: f.detector,
		Renderer: f.renderer,
		Objects:  objects(),
		Clock:    f.clock,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	f.app = a

	require.NoError(t, f.camera.Open())
	require.NoError(t, f.detector.Initialize(context.Background()))

	return f
}

// pixelPinch returns a pinching hand whose mirrored index tip lands on
// pixel (x, y) of a 640x480 frame.
func pixelPinch(x, y float64) detector.HandLandmarks {
	return detector.PinchLandmarks(1-x/640, y/480)
}

func pixelOpen(x, y float64) detector.HandLandmarks {
	return detector.OpenLandmarks(1-x/640, y/480)
}

func (f *fixture) step(t *testing.T, hands ...detector.HandLandmarks) string {
	t.Helper()
	f.detector.SetHands(hands)
	outcome := f.app.tick(context.Background())
	f.clock.Advance(f.app.MinInterval())
	return outcome
}

func TestNew_Validation(t *testing.T) {
	cam := capture.NewMockCamera(nil, false)
	det := detector.NewMockDetector()

	t.Run("duplicate object ids", func(t *testing.T) {
		_, err := New(Config{Camera: cam, Detector: det, Objects: []scene.Object{{ID: "a"}, {ID: "a"}}})
		assert.ErrorIs(t, err, scene.ErrDuplicateID)
	})

	t.Run("missing collaborators", func(t *testing.T) {
		_, err := New(Config{Detector: det})
		assert.Error(t, err)
		_, err = New(Config{Camera: cam})
		assert.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		a, err := New(Config{Camera: cam, Detector: det})
		require.NoError(t, err)
		assert.Equal(t, 50*time.Millisecond, a.MinInterval())
		assert.True(t, a.IsEnabled())
		assert.False(t, a.Running())
	})
}

func TestApp_GrabDragRelease(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, metrics.TickProcessed, f.step(t, pixelPinch(120, 120)))
	s, ok := f.app.machine.Session()
	require.True(t, ok)
	assert.Equal(t, grab.Session{HandIndex: 0, ObjectID: "banana", Offset: geom.Point{X: 20, Y: 20}}, s)
	assert.Equal(t, grab.EventGrabbed, f.renderer.last().Event.Kind)

	require.Equal(t, metrics.TickProcessed, f.step(t, pixelPinch(140, 150)))
	obj, _ := f.app.registry.Get("banana")
	assert.Equal(t, geom.Point{X: 120, Y: 130}, obj.Position)
	assert.True(t, obj.Grabbed)

	last := f.renderer.last()
	require.NotNil(t, last.Session)
	assert.Equal(t, "banana", last.Holder())
	assert.Equal(t, 640, last.Width)
	assert.Equal(t, 480, last.Height)

	require.Equal(t, metrics.TickProcessed, f.step(t, pixelOpen(300, 300)))
	obj, _ = f.app.registry.Get("banana")
	assert.False(t, obj.Grabbed)
	assert.Equal(t, geom.Point{X: 120, Y: 130}, obj.Position)
	assert.Equal(t, grab.EventReleased, f.renderer.last().Event.Kind)
	assert.Nil(t, f.renderer.last().Session)
}

func TestApp_NoHandsReleases(t *testing.T) {
	f := newFixture(t)

	f.step(t, pixelPinch(310, 160))
	require.Equal(t, 1, f.app.registry.GrabbedCount())

	f.step(t)

	assert.Zero(t, f.app.registry.GrabbedCount())
	obj, _ := f.app.registry.Get("strawberry")
	assert.Equal(t, geom.Point{X: 300, Y: 150}, obj.Position)
}

func TestApp_NoHandsWhileIdle(t *testing.T) {
	f := newFixture(t)
	before := f.app.registry.Snapshot()

	require.Equal(t, metrics.TickProcessed, f.step(t))

	assert.Equal(t, before, f.app.registry.Snapshot())
	assert.Equal(t, 1, f.renderer.count())
}

func TestApp_Throttling(t *testing.T) {
	f := newFixture(t)
	f.detector.SetHands([]detector.HandLandmarks{pixelOpen(10, 10)})

	outcomes := map[string]int{}
	for i := 0; i < 60; i++ {
		outcomes[f.app.tick(context.Background())]++
		f.clock.Advance(f.app.hostInterval)
	}

	assert.Equal(t, 20, outcomes[metrics.TickProcessed])
	assert.Equal(t, 60-outcomes[metrics.TickProcessed], outcomes[metrics.TickThrottled])
	assert.Equal(t, outcomes[metrics.TickProcessed], f.detector.Calls())
	assert.Equal(t, outcomes[metrics.TickProcessed], f.renderer.count())
}

// The host ticker drives the pipeline at 60 Hz; one second of ticks must
// yield the full 20 Hz processing rate.
func TestApp_ProcessingRateFromHostTicker(t *testing.T) {
	mat := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer mat.Close()

	clock := clockwork.NewFakeClock()
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{pixelOpen(10, 10)})

	a, err := New(Config{
		Camera:   capture.NewMockCamera([]*gocv.Mat{&mat}, true),
		Detector: det,
		Objects:  objects(),
		Clock:    clock,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, a.Start(ctx))
	defer a.Close()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	processedBefore := tickCount(metrics.TickProcessed)
	for i := 0; i < 60; i++ {
		want := totalTicks() + 1
		clock.Advance(a.hostInterval)
		require.Eventually(t, func() bool { return totalTicks() >= want }, time.Second, time.Millisecond,
			"host tick %d was not handled", i+1)
	}

	assert.Equal(t, 20.0, tickCount(metrics.TickProcessed)-processedBefore)
	assert.Equal(t, 20, det.Calls())
}

func TestApp_TimestampsIncrease(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 5; i++ {
		f.step(t)
	}

	ts := f.detector.Timestamps()
	require.Len(t, ts, 5)
	for i := 1; i < len(ts); i++ {
		assert.Greater(t, ts[i], ts[i-1])
	}
}

func TestApp_FrameNotAvailable(t *testing.T) {
	f := newFixture(t)
	f.camera.SetStarved(true)

	assert.Equal(t, metrics.TickNoFrame, f.app.tick(context.Background()))
	assert.Zero(t, f.detector.Calls())

	// The slot was not consumed: the very next host tick may process.
	f.camera.SetStarved(false)
	assert.Equal(t, metrics.TickProcessed, f.app.tick(context.Background()))
}

func TestApp_DetectErrorSkipsTick(t *testing.T) {
	f := newFixture(t)
	f.step(t, pixelPinch(120, 120))
	require.Equal(t, 1, f.renderer.count())

	f.detector.SetError(errors.New("service crashed"))
	assert.Equal(t, metrics.TickError, f.app.tick(context.Background()))

	// No state change and no render: the grab survives the failed tick.
	assert.Equal(t, 1, f.renderer.count())
	assert.Equal(t, 1, f.app.registry.GrabbedCount())
}

func TestApp_MalformedHandIsSkipped(t *testing.T) {
	f := newFixture(t)

	broken := detector.HandLandmarks{Points: make([]detector.Point3D, 4)}
	require.Equal(t, metrics.TickProcessed, f.step(t, broken, pixelPinch(120, 120)))

	s, ok := f.app.machine.Session()
	require.True(t, ok)
	assert.Equal(t, 1, s.HandIndex)
}

func TestApp_CancelledRequestIsDiscarded(t *testing.T) {
	f := newFixture(t)
	f.detector.SetHands([]detector.HandLandmarks{pixelPinch(120, 120)})
	release := f.detector.Hold()
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	outcome := make(chan string, 1)
	go func() {
		outcome <- f.app.tick(ctx)
	}()

	require.Eventually(t, func() bool { return f.detector.Calls() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case got := <-outcome:
		assert.Equal(t, metrics.TickDiscarded, got)
	case <-time.After(time.Second):
		t.Fatal("tick did not return after cancel")
	}

	// The request is still outstanding: no second request may be issued.
	f.clock.Advance(f.app.MinInterval())
	assert.Equal(t, metrics.TickBusy, f.app.tick(context.Background()))
	assert.Equal(t, 1, f.detector.Calls())

	release()
	require.Eventually(t, func() bool { return len(f.app.inflight) == 0 }, time.Second, time.Millisecond)

	// The late result was never applied.
	assert.Zero(t, f.app.registry.GrabbedCount())
	assert.Zero(t, f.renderer.count())

	assert.Equal(t, metrics.TickProcessed, f.app.tick(context.Background()))
	assert.Equal(t, 1, f.app.registry.GrabbedCount())
}

func TestApp_DisableReleases(t *testing.T) {
	f := newFixture(t)
	f.step(t, pixelPinch(120, 120))
	require.Equal(t, 1, f.app.registry.GrabbedCount())

	f.app.SetEnabled(false)
	assert.Equal(t, metrics.TickDisabled, f.app.tick(context.Background()))

	assert.Zero(t, f.app.registry.GrabbedCount())
	assert.Equal(t, grab.EventReleased, f.renderer.last().Event.Kind)
	assert.False(t, f.renderer.last().Enabled)
	calls := f.detector.Calls()
	rendered := f.renderer.count()

	f.clock.Advance(time.Second)
	assert.Equal(t, metrics.TickDisabled, f.app.tick(context.Background()))
	assert.Equal(t, calls, f.detector.Calls())
	assert.Equal(t, rendered, f.renderer.count())

	f.app.SetEnabled(true)
	assert.Equal(t, metrics.TickProcessed, f.app.tick(context.Background()))
	assert.True(t, f.renderer.last().Enabled)
}

func TestApp_DisableWhileIdleEmitsPauseFrame(t *testing.T) {
	f := newFixture(t)
	f.step(t, pixelOpen(10, 10))
	require.Equal(t, 1, f.renderer.count())
	require.True(t, f.renderer.last().Enabled)

	f.app.SetEnabled(false)
	for i := 0; i < 3; i++ {
		assert.Equal(t, metrics.TickDisabled, f.app.tick(context.Background()))
		f.clock.Advance(f.app.hostInterval)
	}

	require.Equal(t, 2, f.renderer.count())
	paused := f.renderer.last()
	assert.False(t, paused.Enabled)
	assert.Equal(t, grab.EventNone, paused.Event.Kind)
	assert.Equal(t, 640, paused.Width)
	assert.Len(t, paused.Objects, 3)

	// Pausing again after a resume announces the pause again.
	f.app.SetEnabled(true)
	f.clock.Advance(f.app.MinInterval())
	require.Equal(t, metrics.TickProcessed, f.app.tick(context.Background()))
	f.app.SetEnabled(false)
	f.app.tick(context.Background())
	assert.Equal(t, 4, f.renderer.count())
	assert.False(t, f.renderer.last().Enabled)
}

func TestApp_StartFailsWhenInitializationFails(t *testing.T) {
	clock := clockwork.NewFakeClock()
	det := detector.NewMockDetector()
	det.SetInitError(errors.New("model fetch failed"))

	a, err := New(Config{
		Camera:   capture.NewMockCamera(nil, true),
		Detector: det,
		Clock:    clock,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	err = a.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialize landmark source")
	assert.False(t, a.Running())

	clock.Advance(time.Second)
	assert.Zero(t, det.Calls())
}

func TestApp_StartStop(t *testing.T) {
	mat := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer mat.Close()

	clock := clockwork.NewFakeClock()
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{pixelPinch(120, 120)})
	cam := capture.NewMockCamera([]*gocv.Mat{&mat}, true)
	rec := newRecorder()

	a, err := New(Config{
		Camera:   cam,
		Detector: det,
		Renderer: rec,
		Objects:  objects(),
		Clock:    clock,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, a.Start(ctx))
	require.True(t, a.Running())
	require.True(t, cam.IsOpen())

	// Starting twice is a no-op.
	require.NoError(t, a.Start(ctx))

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(a.hostInterval)

	select {
	case f := <-rec.ch:
		assert.Equal(t, "banana", f.Holder())
	case <-ctx.Done():
		t.Fatal("no frame rendered")
	}

	a.Stop()
	assert.False(t, a.Running())
	assert.False(t, cam.IsOpen())

	rendered := rec.count()
	clock.Advance(time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, rendered, rec.count())

	require.NoError(t, a.Close())
}
