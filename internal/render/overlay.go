package render

import (
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/pinchgrab/internal/geom"
	"github.com/ayusman/pinchgrab/internal/gesture"
)

// Overlay colours.
var (
	landmarkColor = color.RGBA{R: 255, A: 255}
	pinchColor    = color.RGBA{G: 200, B: 255, A: 255}
	objectColor   = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	grabbedColor  = color.RGBA{G: 200, A: 255}
)

const landmarkRadius = 5

// Overlay draws landmarks and object boxes onto a blank canvas and keeps the
// latest result as JPEG for the MJPEG stream. It does not composite video.
type Overlay struct {
	sprite geom.Size

	mu     sync.RWMutex
	latest []byte
	seq    uint64
}

// NewOverlay creates an Overlay drawing objects at the given sprite size.
func NewOverlay(sprite geom.Size) *Overlay {
	return &Overlay{sprite: sprite}
}

// Render draws f and stores the encoded JPEG.
func (o *Overlay) Render(f Frame) {
	if f.Width <= 0 || f.Height <= 0 {
		return
	}

	canvas := gocv.NewMatWithSize(f.Height, f.Width, gocv.MatTypeCV8UC3)
	defer canvas.Close()

	o.draw(&canvas, f)

	buf, err := gocv.IMEncode(".jpg", canvas)
	if err != nil {
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	o.mu.Lock()
	o.latest = data
	o.seq = f.Seq
	o.mu.Unlock()
}

func (o *Overlay) draw(canvas *gocv.Mat, f Frame) {
	for _, obj := range f.Objects {
		rect := image.Rect(
			int(obj.Position.X), int(obj.Position.Y),
			int(obj.Position.X+o.sprite.W), int(obj.Position.Y+o.sprite.H),
		)
		if obj.Grabbed {
			gocv.Rectangle(canvas, rect, grabbedColor, 4)
		} else {
			gocv.Rectangle(canvas, rect, objectColor, 1)
		}
		gocv.PutText(canvas, obj.ID, image.Pt(rect.Min.X, rect.Max.Y+14), gocv.FontHersheyPlain, 1, objectColor, 1)
	}

	// Landmarks are mirrored the same way as pinch points so both line up
	// with the mirrored display.
	for _, hand := range f.Hands {
		for _, p := range hand.Points {
			px := gesture.PixelPoint(p, f.Width, f.Height)
			gocv.Circle(canvas, image.Pt(int(px.X), int(px.Y)), landmarkRadius, landmarkColor, -1)
		}
	}

	for _, p := range f.Pinches {
		if p.Pinching {
			gocv.Circle(canvas, image.Pt(int(p.Point.X), int(p.Point.Y)), landmarkRadius*2, pinchColor, 2)
		}
	}
}

// Latest returns the most recent JPEG and its frame sequence number.
// ok is false until the first frame has been rendered.
func (o *Overlay) Latest() (jpeg []byte, seq uint64, ok bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.latest == nil {
		return nil, 0, false
	}
	return o.latest, o.seq, true
}
