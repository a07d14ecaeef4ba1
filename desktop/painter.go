package main

import (
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/wricardo/traffic-editor/render"
)

// screenPainter paints a Scene onto an ebiten frame
type screenPainter struct {
	dst *ebiten.Image
}

func (p screenPainter) Clear(c color.Color) {
	p.dst.Fill(c)
}

func (p screenPainter) StrokeLine(a, b render.Point, width float64, c color.Color) {
	vector.StrokeLine(p.dst, float32(a.X), float32(a.Y), float32(b.X), float32(b.Y), float32(width), c, true)
}

// FillRotatedRect draws the rectangle as a line of width h through its long axis
func (p screenPainter) FillRotatedRect(center render.Point, w, h, angle float64, c color.Color) {
	dx, dy := math.Cos(angle)*w/2, math.Sin(angle)*w/2
	vector.StrokeLine(p.dst,
		float32(center.X-dx), float32(center.Y-dy),
		float32(center.X+dx), float32(center.Y+dy),
		float32(h), c, true)
}
