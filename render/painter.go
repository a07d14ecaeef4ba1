package render

import (
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"
)

// Painter is a drawing surface a Scene can paint onto.
type Painter interface {
	Clear(c color.Color)
	StrokeLine(a, b Point, width float64, c color.Color)
	// FillRotatedRect fills a w x h rectangle centered on center and rotated
	// by angle radians around it.
	FillRotatedRect(center Point, w, h, angle float64, c color.Color)
}

// ImagePainter paints into an in-memory RGBA image.
type ImagePainter struct {
	dc *gg.Context
}

// NewImagePainter creates a width x height ImagePainter.
func NewImagePainter(width, height int) *ImagePainter {
	return &ImagePainter{dc: gg.NewContext(width, height)}
}

func (p *ImagePainter) Clear(c color.Color) {
	p.dc.SetColor(c)
	p.dc.Clear()
}

func (p *ImagePainter) StrokeLine(a, b Point, width float64, c color.Color) {
	p.dc.SetColor(c)
	p.dc.SetLineWidth(width)
	p.dc.DrawLine(a.X, a.Y, b.X, b.Y)
	p.dc.Stroke()
}

func (p *ImagePainter) FillRotatedRect(center Point, w, h, angle float64, c color.Color) {
	p.dc.Push()
	defer p.dc.Pop()
	p.dc.RotateAbout(angle, center.X, center.Y)
	p.dc.DrawRectangle(center.X-w/2, center.Y-h/2, w, h)
	p.dc.SetColor(c)
	p.dc.Fill()
}

// Image returns the painted image.
func (p *ImagePainter) Image() image.Image { return p.dc.Image() }

// EncodePNG writes the image to w as PNG.
func (p *ImagePainter) EncodePNG(w io.Writer) error { return p.dc.EncodePNG(w) }

// SavePNG writes the image to a PNG file.
func (p *ImagePainter) SavePNG(path string) error { return p.dc.SavePNG(path) }
