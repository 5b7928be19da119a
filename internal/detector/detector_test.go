package detector

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

const epsilon = 1e-9

func TestDistance3D(t *testing.T) {
	a := Point3D{X: 0, Y: 0, Z: 0}
	b := Point3D{X: 3, Y: 4, Z: 12}

	if got := Distance3D(a, b); math.Abs(got-13) > epsilon {
		t.Errorf("Distance3D = %f, want 13", got)
	}
	if got := Distance3D(b, b); got != 0 {
		t.Errorf("Distance3D of a point with itself = %f, want 0", got)
	}
}

func TestHandLandmarks_Complete(t *testing.T) {
	t.Run("full hand", func(t *testing.T) {
		hand := OpenPalmLandmarks()
		if !hand.Complete() {
			t.Error("expected open palm to be complete")
		}
	})

	t.Run("truncated hand", func(t *testing.T) {
		hand := HandLandmarks{Points: make([]Point3D, IndexTip)}
		if hand.Complete() {
			t.Error("expected hand with 8 points to be incomplete")
		}
	})

	t.Run("nil hand", func(t *testing.T) {
		var hand *HandLandmarks
		if hand.Complete() {
			t.Error("expected nil hand to be incomplete")
		}
	})
}

func TestMockDetector(t *testing.T) {
	ctx := context.Background()

	t.Run("detect before initialize fails", func(t *testing.T) {
		mock := NewMockDetector()

		_, err := mock.Detect(ctx, nil, 0)
		if !errors.Is(err, ErrNotInitialized) {
			t.Errorf("expected ErrNotInitialized, got %v", err)
		}
	})

	t.Run("returns empty hands by default", func(t *testing.T) {
		mock := NewMockDetector()
		if err := mock.Initialize(ctx); err != nil {
			t.Fatalf("Initialize() error = %v", err)
		}

		hands, err := mock.Detect(ctx, nil, 0)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(hands) != 0 {
			t.Errorf("expected no hands, got %v", hands)
		}
	})

	t.Run("returns configured hands and records timestamps", func(t *testing.T) {
		mock := NewMockDetector()
		mock.Initialize(ctx)
		mock.SetHands([]HandLandmarks{PinchLandmarks(0.5, 0.5), OpenPalmLandmarks()})

		hands, err := mock.Detect(ctx, nil, 50*time.Millisecond)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(hands) != 2 {
			t.Errorf("expected 2 hands, got %d", len(hands))
		}
		if ts := mock.Timestamps(); len(ts) != 1 || ts[0] != 50*time.Millisecond {
			t.Errorf("expected timestamps [50ms], got %v", ts)
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()
		mock.Initialize(ctx)

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		hands, err := mock.Detect(ctx, nil, 0)
		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if hands != nil {
			t.Errorf("expected nil hands when error is set, got %v", hands)
		}
	})

	t.Run("initialize error", func(t *testing.T) {
		mock := NewMockDetector()
		initErr := errors.New("model download failed")
		mock.SetInitError(initErr)

		if err := mock.Initialize(ctx); err != initErr {
			t.Errorf("expected %v, got %v", initErr, err)
		}
	})

	t.Run("hold blocks detect until released", func(t *testing.T) {
		mock := NewMockDetector()
		mock.Initialize(ctx)
		release := mock.Hold()

		done := make(chan struct{})
		go func() {
			mock.Detect(ctx, nil, 0)
			close(done)
		}()

		select {
		case <-done:
			t.Fatal("Detect returned while held")
		case <-time.After(20 * time.Millisecond):
		}

		release()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Detect did not return after release")
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*MediaPipeDetector)(nil)
	})
}

func TestPinchLandmarks(t *testing.T) {
	hand := PinchLandmarks(0.3, 0.6)

	if got := hand.Points[IndexTip]; math.Abs(got.X-0.3) > epsilon || math.Abs(got.Y-0.6) > epsilon {
		t.Errorf("index tip = %+v, want (0.3, 0.6)", got)
	}
	if d := Distance3D(hand.Points[ThumbTip], hand.Points[IndexTip]); d >= 0.08 {
		t.Errorf("thumb-index distance = %f, want < 0.08", d)
	}
}

func TestOpenLandmarks(t *testing.T) {
	hand := OpenLandmarks(0.3, 0.6)

	if got := hand.Points[IndexTip]; math.Abs(got.X-0.3) > epsilon || math.Abs(got.Y-0.6) > epsilon {
		t.Errorf("index tip = %+v, want (0.3, 0.6)", got)
	}
	if d := Distance3D(hand.Points[ThumbTip], hand.Points[IndexTip]); d < 0.08 {
		t.Errorf("thumb-index distance = %f, want >= 0.08", d)
	}
}

func TestParseResponse(t *testing.T) {
	t.Run("hands in order", func(t *testing.T) {
		line := []byte(`{"hands":[{"points":[{"x":0.1,"y":0.2,"z":0}],"handedness":"Left","score":0.7},{"points":[],"handedness":"Right","score":0.9}]}` + "\n")

		hands, err := parseResponse(line)
		if err != nil {
			t.Fatalf("parseResponse() error = %v", err)
		}
		if len(hands) != 2 {
			t.Fatalf("expected 2 hands, got %d", len(hands))
		}
		if hands[0].Handedness != "Left" || len(hands[0].Points) != 1 {
			t.Errorf("unexpected first hand: %+v", hands[0])
		}
		if hands[1].Complete() {
			t.Error("hand with no points should be incomplete")
		}
	})

	t.Run("no hands", func(t *testing.T) {
		hands, err := parseResponse([]byte(`{"hands":[]}`))
		if err != nil {
			t.Fatalf("parseResponse() error = %v", err)
		}
		if len(hands) != 0 {
			t.Errorf("expected no hands, got %d", len(hands))
		}
	})

	t.Run("extra points are truncated", func(t *testing.T) {
		pts := `{"x":0,"y":0,"z":0}`
		list := pts
		for i := 1; i < NumLandmarks+3; i++ {
			list += "," + pts
		}
		hands, err := parseResponse([]byte(`{"hands":[{"points":[` + list + `]}]}`))
		if err != nil {
			t.Fatalf("parseResponse() error = %v", err)
		}
		if len(hands[0].Points) != NumLandmarks {
			t.Errorf("expected %d points, got %d", NumLandmarks, len(hands[0].Points))
		}
	})

	t.Run("service error", func(t *testing.T) {
		if _, err := parseResponse([]byte(`{"error":"boom"}`)); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		if _, err := parseResponse([]byte(`not json`)); err == nil {
			t.Error("expected error")
		}
	})
}
