package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wricardo/traffic-editor/model"
	"github.com/wricardo/traffic-editor/protocol"
)

// World is the authoritative state of one world.
type World struct {
	ID        string
	CreatedAt time.Time

	mu             sync.RWMutex
	lastAccessedAt time.Time
	edges          []model.EdgeData
	vehicles       []model.Vehicle
	newID          func() model.VehicleID
}

func newWorld(id string, seed *protocol.SnapshotData) *World {
	now := time.Now()
	w := &World{
		ID:             id,
		CreatedAt:      now,
		lastAccessedAt: now,
		newID:          func() model.VehicleID { return model.VehicleID(uuid.NewString()) },
	}
	if seed != nil {
		for _, e := range seed.Edges {
			if w.edgeIndex(e) < 0 {
				w.edges = append(w.edges, e)
			}
		}
		for _, v := range seed.Vehicles {
			if v.ID == "" {
				v.ID = w.newID()
			}
			if w.vehicleIndex(v.ID) < 0 {
				w.vehicles = append(w.vehicles, v)
			}
		}
	}
	return w
}

// LastAccessedAt returns when the world was last read or written.
func (w *World) LastAccessedAt() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastAccessedAt
}

// Touch marks the world as accessed now.
func (w *World) Touch() {
	w.mu.Lock()
	w.lastAccessedAt = time.Now()
	w.mu.Unlock()
}

// Snapshot returns a copy of the world's edges and vehicles.
func (w *World) Snapshot() protocol.SnapshotData {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return protocol.SnapshotData{
		Edges:    append([]model.EdgeData{}, w.edges...),
		Vehicles: append([]model.Vehicle{}, w.vehicles...),
	}
}

// AddEdge adds e. Adding an edge that already exists fails with ErrEdgeExists.
func (w *World) AddEdge(e model.EdgeData) error {
	if e.From == e.To {
		return fmt.Errorf("%w: edge %s starts and ends on the same cell", ErrInvalidEdge, e.Key())
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastAccessedAt = time.Now()

	if w.edgeIndex(e) >= 0 {
		return fmt.Errorf("%w: %s", ErrEdgeExists, e.Key())
	}
	w.edges = append(w.edges, e)
	return nil
}

// RemoveEdge removes the edge with the given key and returns it.
func (w *World) RemoveEdge(key model.EdgeKey) (model.EdgeData, error) {
	e, err := model.ParseEdgeKey(string(key))
	if err != nil {
		return model.EdgeData{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastAccessedAt = time.Now()

	i := w.edgeIndex(e)
	if i < 0 {
		return model.EdgeData{}, fmt.Errorf("%w: %s", ErrEdgeNotFound, key)
	}
	w.edges = append(w.edges[:i], w.edges[i+1:]...)
	return e, nil
}

// AddVehicle places a new vehicle on (x, y) and returns it with its id.
func (w *World) AddVehicle(x, y int, color string) model.Vehicle {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastAccessedAt = time.Now()

	v := model.Vehicle{ID: w.newID(), X: x, Y: y, Color: color}
	w.vehicles = append(w.vehicles, v)
	return v
}

// RemoveVehicle removes vehicle id.
func (w *World) RemoveVehicle(id model.VehicleID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastAccessedAt = time.Now()

	i := w.vehicleIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrVehicleNotFound, id)
	}
	w.vehicles = append(w.vehicles[:i], w.vehicles[i+1:]...)
	return nil
}

// MoveVehicle moves vehicle id to pos and returns the patch describing it.
func (w *World) MoveVehicle(id model.VehicleID, pos model.Position) (model.VehiclePatch, error) {
	return w.move(id, pos, true)
}

// Drive is MoveVehicle without marking the world as accessed.
func (w *World) Drive(id model.VehicleID, pos model.Position) (model.VehiclePatch, error) {
	return w.move(id, pos, false)
}

func (w *World) move(id model.VehicleID, pos model.Position, touch bool) (model.VehiclePatch, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if touch {
		w.lastAccessedAt = time.Now()
	}

	i := w.vehicleIndex(id)
	if i < 0 {
		return model.VehiclePatch{}, fmt.Errorf("%w: %s", ErrVehicleNotFound, id)
	}
	w.vehicles[i].X, w.vehicles[i].Y = pos.X, pos.Y
	return model.MoveTo(id, pos), nil
}

// Vehicle returns vehicle id.
func (w *World) Vehicle(id model.VehicleID) (model.Vehicle, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	i := w.vehicleIndex(id)
	if i < 0 {
		return model.Vehicle{}, fmt.Errorf("%w: %s", ErrVehicleNotFound, id)
	}
	return w.vehicles[i], nil
}

func (w *World) edgeIndex(e model.EdgeData) int {
	for i, x := range w.edges {
		if x == e {
			return i
		}
	}
	return -1
}

func (w *World) vehicleIndex(id model.VehicleID) int {
	for i, v := range w.vehicles {
		if v.ID == id {
			return i
		}
	}
	return -1
}

// HasEdge reports whether e exists.
func (w *World) HasEdge(e model.EdgeData) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.edgeIndex(e) >= 0
}
