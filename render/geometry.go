package render

import (
	"math"

	"github.com/wricardo/traffic-editor/model"
)

// Point is a pixel position.
type Point struct {
	X, Y float64
}

// Segment is a straight line between two pixels.
type Segment struct {
	A, B Point
}

// Len returns the segment length.
func (s Segment) Len() float64 {
	return math.Hypot(s.B.X-s.A.X, s.B.Y-s.A.Y)
}

// CellCenter returns the pixel at the middle of cell p.
func CellCenter(p model.Position, zoom float64) Point {
	off := zoom / 2
	return Point{X: float64(p.X)*zoom + off, Y: float64(p.Y)*zoom + off}
}

// Arrow is the drawn form of one edge: a shaft from the center of the
// source cell to the center of the target cell and two barbs at the head.
type Arrow struct {
	LocalID string
	Shaft   Segment
	Left    Segment
	Right   Segment
}

// Segments returns the three strokes of the arrow.
func (a Arrow) Segments() []Segment {
	return []Segment{a.Shaft, a.Left, a.Right}
}

// NewArrow builds the arrow for the edge from -> to at the given zoom.
// Barbs are zoom/4 long and sit at ±30° from the shaft.
func NewArrow(localID string, from, to model.Position, zoom float64) Arrow {
	a := CellCenter(from, zoom)
	b := CellCenter(to, zoom)
	head := zoom / 4
	angle := math.Atan2(b.Y-a.Y, b.X-a.X)

	barb := func(theta float64) Segment {
		return Segment{
			A: b,
			B: Point{X: b.X - head*math.Cos(theta), Y: b.Y - head*math.Sin(theta)},
		}
	}
	return Arrow{
		LocalID: localID,
		Shaft:   Segment{A: a, B: b},
		Left:    barb(angle - math.Pi/6),
		Right:   barb(angle + math.Pi/6),
	}
}

// Dashes splits s into dashes of length on separated by gaps of length off.
// The pattern restarts at s.A.
func Dashes(s Segment, on, off float64) []Segment {
	length := s.Len()
	if length == 0 || on <= 0 {
		return nil
	}
	ux, uy := (s.B.X-s.A.X)/length, (s.B.Y-s.A.Y)/length
	at := func(d float64) Point { return Point{X: s.A.X + ux*d, Y: s.A.Y + uy*d} }

	var out []Segment
	for d := 0.0; d < length; d += on + off {
		end := math.Min(d+on, length)
		out = append(out, Segment{A: at(d), B: at(end)})
	}
	return out
}

// GridLines returns the vertical and horizontal lines spaced zoom apart that
// cover a width x height area, starting at 0.
func GridLines(width, height int, zoom float64) []Segment {
	if zoom <= 0 {
		return nil
	}
	w, h := float64(width), float64(height)
	var out []Segment
	for x := 0.0; x < w; x += zoom {
		out = append(out, Segment{A: Point{X: x, Y: 0}, B: Point{X: x, Y: h}})
	}
	for y := 0.0; y < h; y += zoom {
		out = append(out, Segment{A: Point{X: 0, Y: y}, B: Point{X: w, Y: y}})
	}
	return out
}

func lerp(a, b Point, t float64) Point {
	return Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}
