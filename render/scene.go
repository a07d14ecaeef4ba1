package render

import (
	"image/color"
	"math"
	"time"

	"github.com/wricardo/traffic-editor/model"
	"github.com/wricardo/traffic-editor/world"
)

const (
	DefaultZoom = 20
	MinZoom     = 10
	MaxZoom     = 50

	// TweenDuration is how long a vehicle takes to glide to its new cell.
	TweenDuration = 500 * time.Millisecond

	dashOn  = 6
	dashOff = 3
)

var (
	BackgroundColor = color.RGBA{0xff, 0xff, 0xff, 0xff}
	GridColor       = color.RGBA{0xf5, 0xf5, 0xf5, 0xff}
	EdgeColor       = color.RGBA{0x77, 0x77, 0x77, 0xff}
	PreviewColor    = color.RGBA{0x99, 0x99, 0x99, 0xff}
)

// Layer names one of the Scene's independently rebuilt layers.
type Layer int

const (
	LayerGrid Layer = iota
	LayerEdges
	LayerVehicles
	LayerDrawing
	numLayers
)

func (l Layer) String() string {
	switch l {
	case LayerGrid:
		return "grid"
	case LayerEdges:
		return "edges"
	case LayerVehicles:
		return "vehicles"
	case LayerDrawing:
		return "drawing"
	}
	return "unknown"
}

// Sprite is the drawn form of one vehicle.
type Sprite struct {
	ID       model.VehicleID
	Color    color.RGBA
	Width    float64
	Height   float64
	Rotation float64

	from  Point
	to    Point
	start time.Time
}

// CenterAt returns where the sprite is at time now, part way along its tween.
func (s *Sprite) CenterAt(now time.Time) Point {
	if s.start.IsZero() {
		return s.to
	}
	t := float64(now.Sub(s.start)) / float64(TweenDuration)
	if t >= 1 {
		return s.to
	}
	return lerp(s.from, s.to, math.Max(t, 0))
}

// Target returns the center the sprite is moving to.
func (s *Sprite) Target() Point { return s.to }

func (s *Sprite) moving(now time.Time) bool {
	return !s.start.IsZero() && now.Sub(s.start) < TweenDuration
}

// Scene renders one world.State.
type Scene struct {
	state  *world.State
	width  int
	height int
	zoom   int
	now    func() time.Time

	grid     []Segment
	arrows   []Arrow
	sprites  []*Sprite
	preview  []model.Position
	dashes   []Segment
	dirty    [numLayers]bool
	unsubscr func()
}

// SceneOption configures a Scene.
type SceneOption func(*Scene)

// WithClock replaces time.Now for tweening.
func WithClock(now func() time.Time) SceneOption {
	return func(s *Scene) { s.now = now }
}

// WithZoom sets the initial zoom, clamped to [MinZoom, MaxZoom].
func WithZoom(z int) SceneOption {
	return func(s *Scene) { s.zoom = clampZoom(z) }
}

// NewScene builds a Scene for state covering a width x height viewport and
// subscribes it to state's changes. Call Close to unsubscribe.
func NewScene(state *world.State, width, height int, opts ...SceneOption) *Scene {
	s := &Scene{
		state:  state,
		width:  width,
		height: height,
		zoom:   DefaultZoom,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.buildGrid()
	s.buildEdges()
	s.buildVehicles()
	s.dirty[LayerDrawing] = true

	s.unsubscr = state.Subscribe(world.Observer{
		EdgeAdded:      s.edgeAdded,
		EdgeRemoved:    s.edgeRemoved,
		EdgesReset:     func([]world.Edge) { s.buildEdges() },
		VehicleAdded:   s.vehicleAdded,
		VehicleRemoved: s.vehicleRemoved,
		VehiclesReset:  func([]model.Vehicle) { s.buildVehicles() },
		VehicleUpdated: s.vehicleUpdated,
	})
	return s
}

// Close stops the Scene from following its State.
func (s *Scene) Close() {
	if s.unsubscr != nil {
		s.unsubscr()
		s.unsubscr = nil
	}
}

// State returns the world the Scene draws.
func (s *Scene) State() *world.State { return s.state }

// Zoom returns the current pixels per cell.
func (s *Scene) Zoom() float64 { return float64(s.zoom) }

// ChangeZoom adjusts the zoom by delta pixels per cell, clamped to
// [MinZoom, MaxZoom], and rebuilds the grid, edges and vehicles.
func (s *Scene) ChangeZoom(delta int) {
	z := clampZoom(s.zoom + delta)
	if z == s.zoom {
		return
	}
	s.zoom = z
	s.buildGrid()
	s.buildEdges()
	s.rescaleVehicles()
	if s.preview != nil {
		s.buildPreview()
	}
}

// Resize changes the viewport size. Only the grid depends on it.
func (s *Scene) Resize(width, height int) {
	if width == s.width && height == s.height {
		return
	}
	s.width, s.height = width, height
	s.buildGrid()
}

// Size returns the viewport size.
func (s *Scene) Size() (int, int) { return s.width, s.height }

// SetPreview shows path as the dashed drag preview.
func (s *Scene) SetPreview(path []model.Position) {
	if len(path) < 2 {
		s.ClearPreview()
		return
	}
	s.preview = append(s.preview[:0], path...)
	s.buildPreview()
}

// ClearPreview removes the drag preview.
func (s *Scene) ClearPreview() {
	if s.preview == nil && s.dashes == nil {
		return
	}
	s.preview = nil
	s.dashes = nil
	s.dirty[LayerDrawing] = true
}

// Dirty reports whether layer l changed since the last Draw. The vehicle
// layer stays dirty while a tween is running.
func (s *Scene) Dirty(l Layer) bool {
	if l == LayerVehicles && s.Animating() {
		return true
	}
	return s.dirty[l]
}

// Animating reports whether any vehicle is mid-tween.
func (s *Scene) Animating() bool {
	now := s.now()
	for _, sp := range s.sprites {
		if sp.moving(now) {
			return true
		}
	}
	return false
}

// Grid returns the grid lines.
func (s *Scene) Grid() []Segment { return s.grid }

// Arrows returns the edge arrows in insertion order.
func (s *Scene) Arrows() []Arrow { return s.arrows }

// Sprites returns the vehicle sprites in insertion order.
func (s *Scene) Sprites() []*Sprite { return s.sprites }

// PreviewDashes returns the dashes of the drag preview.
func (s *Scene) PreviewDashes() []Segment { return s.dashes }

// Draw paints every layer onto p and marks them clean.
func (s *Scene) Draw(p Painter) {
	p.Clear(BackgroundColor)
	for _, seg := range s.grid {
		p.StrokeLine(seg.A, seg.B, 1, GridColor)
	}
	for _, a := range s.arrows {
		for _, seg := range a.Segments() {
			p.StrokeLine(seg.A, seg.B, 1, EdgeColor)
		}
	}
	now := s.now()
	for _, sp := range s.sprites {
		p.FillRotatedRect(sp.CenterAt(now), sp.Width, sp.Height, sp.Rotation, sp.Color)
	}
	for _, seg := range s.dashes {
		p.StrokeLine(seg.A, seg.B, 1, PreviewColor)
	}
	for i := range s.dirty {
		s.dirty[i] = false
	}
}

func (s *Scene) buildGrid() {
	s.grid = GridLines(s.width, s.height, s.Zoom())
	s.dirty[LayerGrid] = true
}

func (s *Scene) buildEdges() {
	edges := s.state.Edges()
	s.arrows = make([]Arrow, 0, len(edges))
	for _, e := range edges {
		s.arrows = append(s.arrows, NewArrow(e.LocalID, e.From, e.To, s.Zoom()))
	}
	s.dirty[LayerEdges] = true
}

func (s *Scene) buildVehicles() {
	vehicles := s.state.Vehicles()
	s.sprites = make([]*Sprite, 0, len(vehicles))
	for _, v := range vehicles {
		s.sprites = append(s.sprites, s.newSprite(v))
	}
	s.dirty[LayerVehicles] = true
}

// rescaleVehicles rebuilds the sprites at the current zoom, ending any tween
// but keeping each sprite's heading.
func (s *Scene) rescaleVehicles() {
	headings := make(map[model.VehicleID]float64, len(s.sprites))
	for _, sp := range s.sprites {
		headings[sp.ID] = sp.Rotation
	}
	s.buildVehicles()
	for _, sp := range s.sprites {
		sp.Rotation = headings[sp.ID]
	}
}

func (s *Scene) buildPreview() {
	z := s.Zoom()
	s.dashes = s.dashes[:0]
	for i := 1; i < len(s.preview); i++ {
		seg := Segment{A: CellCenter(s.preview[i-1], z), B: CellCenter(s.preview[i], z)}
		s.dashes = append(s.dashes, Dashes(seg, dashOn, dashOff)...)
	}
	s.dirty[LayerDrawing] = true
}

func (s *Scene) newSprite(v model.Vehicle) *Sprite {
	c, _ := model.ParseColor(v.Color)
	z := s.Zoom()
	center := CellCenter(v.Position(), z)
	return &Sprite{
		ID:     v.ID,
		Color:  c,
		Width:  z / 1.5,
		Height: z / 3,
		from:   center,
		to:     center,
	}
}

func (s *Scene) sprite(id model.VehicleID) (int, *Sprite) {
	for i, sp := range s.sprites {
		if sp.ID == id {
			return i, sp
		}
	}
	return -1, nil
}

func (s *Scene) edgeAdded(e world.Edge) {
	s.arrows = append(s.arrows, NewArrow(e.LocalID, e.From, e.To, s.Zoom()))
	s.dirty[LayerEdges] = true
}

func (s *Scene) edgeRemoved(e world.Edge) {
	for i, a := range s.arrows {
		if a.LocalID == e.LocalID {
			s.arrows = append(s.arrows[:i], s.arrows[i+1:]...)
			s.dirty[LayerEdges] = true
			return
		}
	}
}

func (s *Scene) vehicleAdded(v model.Vehicle) {
	s.sprites = append(s.sprites, s.newSprite(v))
	s.dirty[LayerVehicles] = true
}

func (s *Scene) vehicleRemoved(v model.Vehicle) {
	if i, sp := s.sprite(v.ID); sp != nil {
		s.sprites = append(s.sprites[:i], s.sprites[i+1:]...)
		s.dirty[LayerVehicles] = true
	}
}

func (s *Scene) vehicleUpdated(prev, cur model.Vehicle) {
	_, sp := s.sprite(cur.ID)
	if sp == nil {
		s.vehicleAdded(cur)
		return
	}

	dx, dy := cur.X-prev.X, cur.Y-prev.Y
	if dx != 0 || dy != 0 {
		sp.Rotation = math.Atan2(float64(dy), float64(dx))
	}

	now := s.now()
	sp.from = sp.CenterAt(now)
	sp.to = CellCenter(cur.Position(), s.Zoom())
	sp.start = now
	s.dirty[LayerVehicles] = true
}

func clampZoom(z int) int {
	return min(max(z, MinZoom), MaxZoom)
}
