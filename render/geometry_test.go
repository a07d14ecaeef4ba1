package render

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/traffic-editor/model"
)

const eps = 1e-9

func pos(x, y int) model.Position { return model.Position{X: x, Y: y} }

func TestCellCenter(t *testing.T) {
	assert.Equal(t, Point{X: 10, Y: 10}, CellCenter(pos(0, 0), 20))
	assert.Equal(t, Point{X: 50, Y: 70}, CellCenter(pos(2, 3), 20))
	assert.Equal(t, Point{X: -5, Y: 5}, CellCenter(pos(-1, 0), 10))
}

func TestNewArrow(t *testing.T) {
	a := NewArrow("c1", pos(0, 0), pos(1, 0), 20)

	assert.Equal(t, "c1", a.LocalID)
	assert.Equal(t, Segment{A: Point{X: 10, Y: 10}, B: Point{X: 30, Y: 10}}, a.Shaft)

	head := 20.0 / 4
	for _, barb := range []Segment{a.Left, a.Right} {
		assert.Equal(t, a.Shaft.B, barb.A)
		assert.InDelta(t, head, barb.Len(), eps)
		assert.Less(t, barb.B.X, a.Shaft.B.X, "barbs point back along the shaft")
	}
	assert.InDelta(t, 10-head*math.Sin(-math.Pi/6), a.Left.B.Y, eps)
	assert.InDelta(t, 10-head*math.Sin(math.Pi/6), a.Right.B.Y, eps)
	assert.Len(t, a.Segments(), 3)
}

func TestDashes(t *testing.T) {
	seg := Segment{A: Point{X: 0, Y: 0}, B: Point{X: 20, Y: 0}}
	dashes := Dashes(seg, 6, 3)

	require.Len(t, dashes, 3)
	assert.Equal(t, Segment{A: Point{X: 0}, B: Point{X: 6}}, dashes[0])
	assert.Equal(t, Segment{A: Point{X: 9}, B: Point{X: 15}}, dashes[1])
	assert.Equal(t, Segment{A: Point{X: 18}, B: Point{X: 20}}, dashes[2])

	assert.Nil(t, Dashes(Segment{}, 6, 3))
}

func TestDashes_Diagonal(t *testing.T) {
	seg := Segment{A: Point{X: 10, Y: 10}, B: Point{X: 30, Y: 30}}
	total := 0.0
	for _, d := range Dashes(seg, 6, 3) {
		assert.LessOrEqual(t, d.Len(), 6+eps)
		total += d.Len()
	}
	assert.Greater(t, total, seg.Len()/2)
}

func TestGridLines(t *testing.T) {
	lines := GridLines(100, 60, 20)
	// 5 vertical (0..80) and 3 horizontal (0..40)
	require.Len(t, lines, 8)
	assert.Equal(t, Segment{A: Point{X: 80, Y: 0}, B: Point{X: 80, Y: 60}}, lines[4])
	assert.Equal(t, Segment{A: Point{X: 0, Y: 40}, B: Point{X: 100, Y: 40}}, lines[7])

	assert.Nil(t, GridLines(100, 100, 0))
}
