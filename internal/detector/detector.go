package detector

import (
	"context"
	"errors"
	"time"

	"gocv.io/x/gocv"
)

// ErrNotInitialized is returned by Detect when Initialize has not succeeded.
var ErrNotInitialized = errors.New("detector not initialized")

// Detector is the landmark source consumed by the frame scheduler.
type Detector interface {
	// Initialize performs the one-time, possibly slow, setup of the source.
	// A failure is fatal: callers must not start detecting afterwards.
	Initialize(ctx context.Context) error

	// Detect returns the hands found in frame. timestamp is monotonic and
	// strictly increasing across calls. No hands yields an empty slice and a
	// nil error. At most one call is in flight at a time.
	Detect(ctx context.Context, frame *gocv.Mat, timestamp time.Duration) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}
