package interact

import (
	"context"
	"math/rand/v2"

	"github.com/sirupsen/logrus"

	"github.com/wricardo/traffic-editor/client"
	"github.com/wricardo/traffic-editor/logging"
	"github.com/wricardo/traffic-editor/model"
	"github.com/wricardo/traffic-editor/world"
)

// Mutator issues mutation requests for the world being edited.
// *client.API satisfies it.
type Mutator interface {
	CreateEdge(ctx context.Context, from, to model.Position) *client.Task
	DeleteEdge(ctx context.Context, key model.EdgeKey) *client.Task
	CreateVehicle(ctx context.Context, x, y int, color string) *client.Task
	DeleteVehicle(ctx context.Context, id model.VehicleID) *client.Task
}

// Zoomer reports the current pixels per cell.
type Zoomer interface {
	Zoom() float64
}

// ZoomFunc adapts a function to Zoomer.
type ZoomFunc func() float64

func (f ZoomFunc) Zoom() float64 { return f() }

// Surface tracks one pointer over the grid.
type Surface struct {
	state   *world.State
	mutator Mutator
	zoom    Zoomer
	rng     *rand.Rand
	log     logrus.FieldLogger

	pressed  bool
	dragging bool
	start    model.Position
	preview  []model.Position

	onPreview func([]model.Position)
}

// Option configures a Surface.
type Option func(*Surface)

// WithRand sets the source of vehicle colors.
func WithRand(r *rand.Rand) Option {
	return func(s *Surface) { s.rng = r }
}

// WithLogger sets the logger for issued requests.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Surface) { s.log = l }
}

// OnPreview registers fn to receive the drag path whenever it changes. The
// path is nil once the gesture ends.
func OnPreview(fn func([]model.Position)) Option {
	return func(s *Surface) { s.onPreview = fn }
}

// NewSurface creates a Surface editing state through m.
func NewSurface(state *world.State, m Mutator, z Zoomer, opts ...Option) *Surface {
	s := &Surface{
		state:   state,
		mutator: m,
		zoom:    z,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		log:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Preview returns the path of the drag in progress, or nil.
func (s *Surface) Preview() []model.Position { return s.preview }

// Dragging reports whether the pointer has moved since it was pressed.
func (s *Surface) Dragging() bool { return s.dragging }

func (s *Surface) cell(px, py float64) model.Position {
	return CellAt(px, py, s.zoom.Zoom())
}

// PointerDown starts a gesture at pixel (px, py).
func (s *Surface) PointerDown(px, py float64) {
	s.pressed = true
	s.dragging = false
	s.start = s.cell(px, py)
	s.setPreview(nil)
}

// PointerMove turns the gesture into a drag and updates the preview.
// Moves without a pressed pointer are ignored.
func (s *Surface) PointerMove(px, py float64) {
	if !s.pressed {
		return
	}
	s.dragging = true

	path := FindPath(s.start, s.cell(px, py))
	if len(path) < 2 {
		path = nil
	}
	s.setPreview(path)
}

// PointerUp ends the gesture and issues the resulting requests.
func (s *Surface) PointerUp(px, py float64) []*client.Task {
	if !s.pressed {
		return nil
	}
	var tasks []*client.Task
	if s.dragging {
		tasks = s.releaseDrag(FindPath(s.start, s.cell(px, py)))
	} else {
		tasks = s.releaseClick(s.start)
	}

	s.pressed = false
	s.dragging = false
	s.setPreview(nil)
	return tasks
}

// releaseDrag erases the path when its first segment already exists and
// draws it otherwise, flipping any segment that points the other way.
func (s *Surface) releaseDrag(path []model.Position) []*client.Task {
	if len(path) < 2 {
		return nil
	}
	ctx := context.Background()
	var tasks []*client.Task

	if _, ok := s.state.FindEdge(path[0], path[1]); ok {
		for i := 1; i < len(path); i++ {
			key := model.NewEdgeKey(path[i-1], path[i])
			s.log.WithField("edge", key).Debug("delete edge")
			tasks = append(tasks, s.mutator.DeleteEdge(ctx, key))
		}
		return tasks
	}

	for i := 1; i < len(path); i++ {
		from, to := path[i-1], path[i]
		if _, ok := s.state.FindEdge(to, from); ok {
			key := model.NewEdgeKey(to, from)
			s.log.WithField("edge", key).Debug("delete reverse edge")
			tasks = append(tasks, s.mutator.DeleteEdge(ctx, key))
		}
		if _, ok := s.state.FindEdge(from, to); !ok {
			s.log.WithField("edge", model.NewEdgeKey(from, to)).Debug("create edge")
			tasks = append(tasks, s.mutator.CreateEdge(ctx, from, to))
		}
	}
	return tasks
}

func (s *Surface) releaseClick(c model.Position) []*client.Task {
	ctx := context.Background()
	if v, ok := s.state.FindVehicle(c.X, c.Y); ok {
		s.log.WithField("vehicle_id", v.ID).Debug("delete vehicle")
		return []*client.Task{s.mutator.DeleteVehicle(ctx, v.ID)}
	}
	color := model.RandomColor(s.rng)
	s.log.WithFields(logrus.Fields{"x": c.X, "y": c.Y, "color": color}).Debug("create vehicle")
	return []*client.Task{s.mutator.CreateVehicle(ctx, c.X, c.Y, color)}
}

func (s *Surface) setPreview(path []model.Position) {
	if path == nil && s.preview == nil {
		return
	}
	s.preview = path
	if s.onPreview != nil {
		s.onPreview(path)
	}
}
