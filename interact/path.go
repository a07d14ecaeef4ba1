package interact

import (
	"math"

	"github.com/wricardo/traffic-editor/model"
)

// CellAt returns the grid cell containing pixel (px, py) at zoom pixels per cell.
func CellAt(px, py, zoom float64) model.Position {
	return model.Position{
		X: int(math.Floor(px / zoom)),
		Y: int(math.Floor(py / zoom)),
	}
}

// FindPath returns the cells from a to b inclusive. Every step moves x one
// cell toward b.X unless it is already there, and y likewise, so diagonal
// steps come first and the path has max(|dx|, |dy|)+1 cells.
func FindPath(a, b model.Position) []model.Position {
	dx, dy := sign(b.X-a.X), sign(b.Y-a.Y)
	path := make([]model.Position, 0, max(abs(b.X-a.X), abs(b.Y-a.Y))+1)

	p := a
	path = append(path, p)
	for p != b {
		if p.X != b.X {
			p.X += dx
		}
		if p.Y != b.Y {
			p.Y += dy
		}
		path = append(path, p)
	}
	return path
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
