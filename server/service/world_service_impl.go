package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/wricardo/traffic-editor/interact"
	"github.com/wricardo/traffic-editor/logging"
	"github.com/wricardo/traffic-editor/model"
	"github.com/wricardo/traffic-editor/protocol"
	"github.com/wricardo/traffic-editor/server/config"
	"github.com/wricardo/traffic-editor/server/store"
)

// worldServiceImpl implements the WorldService interface
type worldServiceImpl struct {
	worlds  WorldStore
	presets PresetSource
	events  Broadcaster
	log     logrus.FieldLogger
	// mu keeps mutation and broadcast order identical
	mu sync.Mutex
}

// Option configures the world service
type Option func(*worldServiceImpl)

// WithLogger sets the service logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *worldServiceImpl) { s.log = l }
}

// NewWorldService creates a new world service instance. presets and events
// may be nil.
func NewWorldService(worlds WorldStore, presets PresetSource, events Broadcaster, opts ...Option) WorldService {
	s := &worldServiceImpl{
		worlds:  worlds,
		presets: presets,
		events:  events,
		log:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *worldServiceImpl) broadcast(msg protocol.Message) {
	if s.events != nil {
		s.events.Broadcast(msg.World(), msg)
	}
}

// open returns the world, creating it from the preset of the same name
// when one exists. Callers hold mu so a concurrent DeleteWorld cannot
// leave them working on a dropped world.
func (s *worldServiceImpl) open(worldID string) (*store.World, error) {
	if worldID == "" {
		return nil, fmt.Errorf("%w: world id is required", store.ErrInvalidWorldID)
	}
	if w, err := s.worlds.Get(worldID); err == nil {
		w.Touch()
		return w, nil
	}

	var seed *protocol.SnapshotData
	if s.presets != nil {
		preset, err := s.presets.LoadPreset(worldID)
		switch {
		case err == nil:
			seed = preset.Snapshot()
			s.log.WithFields(logrus.Fields{"world_id": worldID, "preset": preset.Name}).Info("seeding world from preset")
		case !errors.Is(err, config.ErrPresetNotFound):
			s.log.WithField("world_id", worldID).WithError(err).Warn("ignoring unusable preset")
		}
	}

	w, err := s.worlds.GetOrCreate(worldID, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to open world: %w", err)
	}
	return w, nil
}

func info(w *store.World) *WorldInfo {
	snap := w.Snapshot()
	return &WorldInfo{
		ID:             w.ID,
		CreatedAt:      w.CreatedAt,
		LastAccessedAt: w.LastAccessedAt(),
		Edges:          len(snap.Edges),
		Vehicles:       len(snap.Vehicles),
	}
}

// OpenWorld returns the world, creating it on first use
func (s *worldServiceImpl) OpenWorld(ctx context.Context, worldID string) (*WorldInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.open(worldID)
	if err != nil {
		return nil, err
	}
	return info(w), nil
}

// GetWorld returns an existing world without creating it
func (s *worldServiceImpl) GetWorld(ctx context.Context, worldID string) (*WorldInfo, error) {
	w, err := s.worlds.Get(worldID)
	if err != nil {
		return nil, fmt.Errorf("world %s: %w", worldID, err)
	}
	return info(w), nil
}

// ListWorlds returns all live worlds
func (s *worldServiceImpl) ListWorlds(ctx context.Context) ([]*WorldInfo, error) {
	worlds := s.worlds.List()
	result := make([]*WorldInfo, 0, len(worlds))
	for _, w := range worlds {
		result = append(result, info(w))
	}
	return result, nil
}

// DeleteWorld drops a world. Clients still watching it receive an empty
// snapshot so they match the fresh world a later request would create.
func (s *worldServiceImpl) DeleteWorld(ctx context.Context, worldID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.worlds.Delete(worldID); err != nil {
		return fmt.Errorf("world %s: %w", worldID, err)
	}
	s.broadcast(protocol.Snapshot{WorldID: worldID})
	s.log.WithField("world_id", worldID).Info("world deleted")
	return nil
}

// Snapshot returns the full state of a world as a snapshot message
func (s *worldServiceImpl) Snapshot(ctx context.Context, worldID string) (*protocol.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.open(worldID)
	if err != nil {
		return nil, err
	}
	return &protocol.Snapshot{WorldID: w.ID, SnapshotData: w.Snapshot()}, nil
}

// WithSnapshot calls fn with the world's current snapshot while no mutation
// can be applied or broadcast. Subscribers register inside fn so they see
// every event that follows the snapshot and none that precede it.
func (s *worldServiceImpl) WithSnapshot(ctx context.Context, worldID string, fn func(*protocol.Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.open(worldID)
	if err != nil {
		return err
	}
	return fn(&protocol.Snapshot{WorldID: w.ID, SnapshotData: w.Snapshot()})
}

// AddEdge adds an edge and announces it
func (s *worldServiceImpl) AddEdge(ctx context.Context, worldID string, e model.EdgeData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.open(worldID)
	if err != nil {
		return err
	}
	if err := w.AddEdge(e); err != nil {
		return err
	}
	s.broadcast(protocol.EdgeAdded{WorldID: w.ID, Edge: e})
	return nil
}

// RemoveEdge removes an edge and announces it
func (s *worldServiceImpl) RemoveEdge(ctx context.Context, worldID string, key model.EdgeKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.open(worldID)
	if err != nil {
		return err
	}
	e, err := w.RemoveEdge(key)
	if err != nil {
		return err
	}
	s.broadcast(protocol.EdgeRemoved{WorldID: w.ID, Edge: e})
	return nil
}

// DrawPath applies a drag from one cell to another: when the first segment
// already exists the whole path is erased, otherwise every segment is drawn
// and segments pointing the other way are flipped.
func (s *worldServiceImpl) DrawPath(ctx context.Context, worldID string, from, to model.Position) (*PathResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.open(worldID)
	if err != nil {
		return nil, err
	}
	path := interact.FindPath(from, to)
	result := &PathResult{Path: path}
	if len(path) < 2 {
		return result, nil
	}

	remove := func(e model.EdgeData) {
		if _, err := w.RemoveEdge(e.Key()); err == nil {
			result.Removed = append(result.Removed, e.Key())
			s.broadcast(protocol.EdgeRemoved{WorldID: w.ID, Edge: e})
		}
	}

	if w.HasEdge(model.EdgeData{From: path[0], To: path[1]}) {
		result.Erased = true
		for i := 1; i < len(path); i++ {
			remove(model.EdgeData{From: path[i-1], To: path[i]})
		}
		return result, nil
	}

	for i := 1; i < len(path); i++ {
		e := model.EdgeData{From: path[i-1], To: path[i]}
		if w.HasEdge(e.Reverse()) {
			remove(e.Reverse())
		}
		if err := w.AddEdge(e); err == nil {
			result.Added = append(result.Added, e.Key())
			s.broadcast(protocol.EdgeAdded{WorldID: w.ID, Edge: e})
		}
	}
	return result, nil
}

// AddVehicle places a vehicle and announces it. An empty color picks a random one.
func (s *worldServiceImpl) AddVehicle(ctx context.Context, worldID string, x, y int, color string) (model.Vehicle, error) {
	if color == "" {
		color = model.RandomColor(nil)
	} else if _, ok := model.ParseColor(color); !ok {
		return model.Vehicle{}, fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.open(worldID)
	if err != nil {
		return model.Vehicle{}, err
	}
	v := w.AddVehicle(x, y, color)
	s.broadcast(protocol.VehicleAdded{WorldID: w.ID, Vehicle: v})
	return v, nil
}

// RemoveVehicle removes a vehicle and announces it
func (s *worldServiceImpl) RemoveVehicle(ctx context.Context, worldID string, id model.VehicleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.open(worldID)
	if err != nil {
		return err
	}
	if err := w.RemoveVehicle(id); err != nil {
		return err
	}
	s.broadcast(protocol.VehicleRemoved{WorldID: w.ID, ID: id})
	return nil
}

// MoveVehicle moves a vehicle and announces the new position
func (s *worldServiceImpl) MoveVehicle(ctx context.Context, worldID string, id model.VehicleID, pos model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.open(worldID)
	if err != nil {
		return err
	}
	patch, err := w.MoveVehicle(id, pos)
	if err != nil {
		return err
	}
	s.broadcast(protocol.VehicleUpdated{WorldID: w.ID, Patch: patch})
	return nil
}

// StepVehicles moves every vehicle of an existing world to the cell next
// picks for it and announces each move. Stepping does not count as an
// access, so a world only the simulator uses still goes idle.
func (s *worldServiceImpl) StepVehicles(ctx context.Context, worldID string, next StepFunc) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.worlds.Get(worldID)
	if err != nil {
		return 0, fmt.Errorf("world %s: %w", worldID, err)
	}

	snap := w.Snapshot()
	net := config.NewNetwork(snap.Edges)
	moved := 0
	for _, v := range snap.Vehicles {
		to, ok := next(net, v)
		if !ok {
			continue
		}
		patch, err := w.Drive(v.ID, to)
		if err != nil {
			continue
		}
		s.broadcast(protocol.VehicleUpdated{WorldID: w.ID, Patch: patch})
		moved++
	}
	return moved, nil
}

// ListPresets lists the presets worlds can be seeded from
func (s *worldServiceImpl) ListPresets(ctx context.Context) ([]*config.PresetInfo, error) {
	if s.presets == nil {
		return []*config.PresetInfo{}, nil
	}
	return s.presets.ListPresets()
}
