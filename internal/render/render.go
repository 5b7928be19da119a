// Package render defines the consumer side of the pinch pipeline: after every
// processed tick the scheduler hands an immutable Frame to a Renderer.
package render

import (
	"time"

	"github.com/ayusman/pinchgrab/internal/detector"
	"github.com/ayusman/pinchgrab/internal/gesture"
	"github.com/ayusman/pinchgrab/internal/grab"
	"github.com/ayusman/pinchgrab/internal/scene"
)

// Frame is everything a renderer needs for one processed tick. Slices are
// copies owned by the frame; renderers may keep them.
type Frame struct {
	Seq       uint64                   `json:"seq"`
	Timestamp time.Time                `json:"timestamp"`
	Width     int                      `json:"width"`
	Height    int                      `json:"height"`
	Hands     []detector.HandLandmarks `json:"hands"`
	Pinches   []gesture.PinchState     `json:"pinches"`
	Objects   []scene.Object           `json:"objects"`
	Session   *grab.Session            `json:"session,omitempty"`
	Event     grab.Event               `json:"event"`
	Enabled   bool                     `json:"enabled"` // false while processing is paused
}

// Holder returns the id of the held object, or "" when nothing is held.
func (f Frame) Holder() string {
	if f.Session == nil {
		return ""
	}
	return f.Session.ObjectID
}

// Renderer consumes frames. Render is called synchronously on the scheduler
// goroutine and must not block for long; it has no way to feed back into
// pipeline state.
type Renderer interface {
	Render(f Frame)
}

// Func adapts a plain function to a Renderer.
type Func func(f Frame)

// Render calls fn(f).
func (fn Func) Render(f Frame) {
	fn(f)
}

// Multi fans a frame out to several renderers in order.
type Multi []Renderer

// Render calls every non-nil renderer.
func (m Multi) Render(f Frame) {
	for _, r := range m {
		if r != nil {
			r.Render(f)
		}
	}
}

// Nop discards frames.
type Nop struct{}

// Render does nothing.
func (Nop) Render(Frame) {}
