package geometry

import "math"

// Rect is an axis-aligned box in screen space, Top-Left origin.
type Rect struct {
	Left, Top     float64
	Width, Height float64
}

// RectAround returns a square of side size centred on c.
func RectAround(c Vector2D, size float64) Rect {
	return Rect{Left: c.X - size/2, Top: c.Y - size/2, Width: size, Height: size}
}

func (r Rect) Right() float64  { return r.Left + r.Width }
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Overlaps reports whether the interiors of r and other intersect.
// Boxes that only share an edge do not overlap.
func (r Rect) Overlaps(other Rect) bool {
	return r.Left < other.Right() && other.Left < r.Right() &&
		r.Top < other.Bottom() && other.Top < r.Bottom()
}

// Pixel returns the integer top-left corner, rounded to the nearest pixel.
func (r Rect) Pixel() (top, left int) {
	return int(math.Round(r.Top)), int(math.Round(r.Left))
}
