package app

import (
	"context"
	"time"

	"github.com/ayusman/pinchgrab/internal/detector"
	"github.com/ayusman/pinchgrab/internal/gesture"
	"github.com/ayusman/pinchgrab/internal/grab"
	"github.com/ayusman/pinchgrab/internal/metrics"
	"github.com/ayusman/pinchgrab/internal/render"
)

type detectResult struct {
	hands []detector.HandLandmarks
	err   error
}

// runPipeline is the host tick loop. Every host tick calls tick; tick decides
// whether the tick is actually processed.
func (a *App) runPipeline(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := a.clock.NewTicker(a.hostInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			a.tick(ctx)
		}
	}
}

// tick handles one host tick and returns its outcome (see metrics.Tick*).
//
// A tick is processed only if minInterval has passed since the last processed
// tick (give or take half a host interval), no landmark request is
// outstanding and the camera has a frame. Processing runs detect, classify, grab update and render in that
// order; a detect result that arrives after ctx is cancelled is dropped.
func (a *App) tick(ctx context.Context) string {
	outcome := a.runTick(ctx)
	metrics.TicksTotal.WithLabelValues(outcome).Inc()
	return outcome
}

func (a *App) runTick(ctx context.Context) string {
	if ctx.Err() != nil {
		return metrics.TickDiscarded
	}

	now := a.clock.Now()

	if !a.IsEnabled() {
		_, holding := a.machine.Session()
		if holding || !a.pauseShown {
			var ev grab.Event
			if holding {
				var err error
				ev, err = a.machine.Release(a.registry)
				if err != nil {
					a.logger.Error("releasing on disable", "error", err)
				}
				a.recordEvent(ev)
			}
			a.emit(now, nil, nil, ev, false)
			a.pauseShown = true
		}
		return metrics.TickDisabled
	}
	a.pauseShown = false

	if a.processedOnce && now.Sub(a.lastProcessed)+a.slack < a.minInterval {
		return metrics.TickThrottled
	}

	select {
	case a.inflight <- struct{}{}:
	default:
		return metrics.TickBusy
	}

	frame, err := a.camera.ReadFrame()
	if err != nil {
		<-a.inflight
		a.logger.Debug("frame not available", "error", err)
		return metrics.TickNoFrame
	}

	a.lastProcessed = now
	a.processedOnce = true

	width, height := frame.Cols(), frame.Rows()
	timestamp := now.Sub(a.epoch)

	results := make(chan detectResult, 1)
	go func() {
		start := a.clock.Now()
		hands, err := a.detector.Detect(ctx, frame, timestamp)
		metrics.DetectDuration.Observe(a.clock.Since(start).Seconds())
		frame.Close()
		<-a.inflight
		results <- detectResult{hands: hands, err: err}
	}()

	var res detectResult
	select {
	case res = <-results:
	case <-ctx.Done():
		return metrics.TickDiscarded
	}

	if ctx.Err() != nil {
		return metrics.TickDiscarded
	}

	if res.err != nil {
		a.logger.Warn("landmark detection failed", "error", res.err)
		return metrics.TickError
	}

	a.process(now, width, height, res.hands)
	return metrics.TickProcessed
}

// process runs classifier, grab machine and renderer for one tick.
func (a *App) process(now time.Time, width, height int, hands []detector.HandLandmarks) {
	metrics.HandsDetected.Set(float64(len(hands)))

	states := a.classifier.Classify(hands, width, height)

	ev, err := a.machine.Update(states, a.registry)
	if err != nil {
		a.logger.Error("grab update failed", "error", err)
	}
	a.recordEvent(ev)

	a.width, a.height = width, height
	a.emit(now, hands, states, ev, true)
}

// emit renders the current scene. Frame size is that of the last processed
// camera frame.
func (a *App) emit(now time.Time, hands []detector.HandLandmarks, states []gesture.PinchState, ev grab.Event, enabled bool) {
	a.seq++

	f := render.Frame{
		Seq:       a.seq,
		Timestamp: now,
		Width:     a.width,
		Height:    a.height,
		Enabled:   enabled,
		Hands:     append([]detector.HandLandmarks(nil), hands...),
		Pinches:   states,
		Objects:   a.registry.Snapshot(),
		Event:     ev,
	}
	if s, ok := a.machine.Session(); ok {
		f.Session = &s
	}

	a.renderer.Render(f)
}

func (a *App) recordEvent(ev grab.Event) {
	switch ev.Kind {
	case grab.EventGrabbed:
		metrics.GrabEventsTotal.WithLabelValues(string(ev.Kind)).Inc()
		metrics.Holding.Set(1)
		a.logger.Info("object grabbed", "object", ev.ObjectID, "hand", ev.HandIndex,
			"x", ev.Position.X, "y", ev.Position.Y)
	case grab.EventReleased:
		metrics.GrabEventsTotal.WithLabelValues(string(ev.Kind)).Inc()
		metrics.Holding.Set(0)
		a.logger.Info("object released", "object", ev.ObjectID, "hand", ev.HandIndex,
			"x", ev.Position.X, "y", ev.Position.Y)
	}
}
