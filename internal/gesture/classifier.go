// Package gesture turns hand landmarks into pinch states in pixel space.
package gesture

import (
	"github.com/ayusman/pinchgrab/internal/detector"
	"github.com/ayusman/pinchgrab/internal/geom"
)

// DefaultPinchThreshold is the normalized thumb-index distance below which a
// hand counts as pinching.
const DefaultPinchThreshold = 0.08

// PinchState is the per-hand, per-tick classification result.
type PinchState struct {
	HandIndex int        `json:"hand"`     // position in the detector's output for this tick
	Pinching  bool       `json:"pinching"` // thumb tip within threshold of index tip
	Distance  float64    `json:"distance"` // normalized thumb-index distance
	Point     geom.Point `json:"point"`    // index fingertip, mirrored, in pixels
}

// Classifier classifies hands as pinching or not.
type Classifier struct {
	threshold float64
}

// NewClassifier creates a Classifier. A non-positive threshold selects
// DefaultPinchThreshold.
func NewClassifier(threshold float64) *Classifier {
	if threshold <= 0 {
		threshold = DefaultPinchThreshold
	}
	return &Classifier{threshold: threshold}
}

// Threshold returns the pinch distance threshold in use.
func (c *Classifier) Threshold() float64 {
	return c.threshold
}

// Classify returns one PinchState per well-formed hand, in input order.
// Hands with fewer than detector.NumLandmarks points are skipped, so the
// result may be shorter than hands; HandIndex always refers to the input
// position. No hands yields an empty result.
func (c *Classifier) Classify(hands []detector.HandLandmarks, width, height int) []PinchState {
	states := make([]PinchState, 0, len(hands))

	for i := range hands {
		hand := &hands[i]
		if !hand.Complete() {
			continue
		}

		thumb := hand.Points[detector.ThumbTip]
		index := hand.Points[detector.IndexTip]
		distance := detector.Distance3D(thumb, index)

		states = append(states, PinchState{
			HandIndex: i,
			Pinching:  distance < c.threshold,
			Distance:  distance,
			Point:     PixelPoint(index, width, height),
		})
	}

	return states
}

// PixelPoint maps a normalized landmark to pixel space, mirroring X so the
// point lines up with a mirrored (selfie) display.
func PixelPoint(p detector.Point3D, width, height int) geom.Point {
	return geom.Point{
		X: (1 - p.X) * float64(width),
		Y: p.Y * float64(height),
	}
}
