// Package geom holds the pixel-space primitives shared by the pinch pipeline.
package geom

// Point is a position in pixel space.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Size is a width/height pair in pixels.
type Size struct {
	W float64 `json:"w" yaml:"w"`
	H float64 `json:"h" yaml:"h"`
}

// Contains reports whether p lies in the half-open box [origin, origin+size).
func (s Size) Contains(origin, p Point) bool {
	return p.X >= origin.X && p.X < origin.X+s.W &&
		p.Y >= origin.Y && p.Y < origin.Y+s.H
}
