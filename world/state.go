// Package world holds the client-side state of one traffic world session:
// the edges and vehicles last reported by the server.
//
// A State is not safe for concurrent use. Every mutation, lookup and
// observer callback happens on the goroutine that drives the UI; network
// readers hand decoded events over to that goroutine instead of touching
// the State themselves.
package world

import (
	"errors"
	"strconv"

	"github.com/wricardo/traffic-editor/model"
)

// ErrVehicleNotFound is returned when an update or removal names a vehicle
// the State does not hold.
var ErrVehicleNotFound = errors.New("vehicle not found")

// Edge is a directed road segment held by a State. LocalID is assigned by
// the State when the edge object is created and is never sent to the server.
type Edge struct {
	LocalID string
	From    model.Position
	To      model.Position
}

// Data returns the wire form of the edge.
func (e Edge) Data() model.EdgeData {
	return model.EdgeData{From: e.From, To: e.To}
}

// Observer receives change notifications from a State. Nil callbacks are skipped.
type Observer struct {
	EdgeAdded   func(Edge)
	EdgeRemoved func(Edge)
	EdgesReset  func([]Edge)

	VehicleAdded   func(model.Vehicle)
	VehicleRemoved func(model.Vehicle)
	VehiclesReset  func([]model.Vehicle)
	// VehicleUpdated gets the vehicle before and after the change.
	VehicleUpdated func(prev, cur model.Vehicle)
}

// State is the in-memory representation of one world.
type State struct {
	id       string
	edges    []Edge
	vehicles []model.Vehicle

	nextLocal int
	// observers in subscription order; cancelled entries stay as nil
	observers []*Observer
}

// New creates an empty State for the world with the given id.
func New(id string) *State {
	return &State{id: id}
}

// ID returns the world id.
func (s *State) ID() string { return s.id }

// Subscribe registers o and returns a function that removes it again.
// Observers are notified in the order they subscribed.
func (s *State) Subscribe(o Observer) (cancel func()) {
	i := len(s.observers)
	s.observers = append(s.observers, &o)
	return func() { s.observers[i] = nil }
}

// Edges returns a copy of the current edges.
func (s *State) Edges() []Edge {
	out := make([]Edge, len(s.edges))
	copy(out, s.edges)
	return out
}

// Vehicles returns a copy of the current vehicles.
func (s *State) Vehicles() []model.Vehicle {
	out := make([]model.Vehicle, len(s.vehicles))
	copy(out, s.vehicles)
	return out
}

// FindEdge returns the first edge running exactly from -> to.
func (s *State) FindEdge(from, to model.Position) (Edge, bool) {
	for _, e := range s.edges {
		if e.From == from && e.To == to {
			return e, true
		}
	}
	return Edge{}, false
}

// FindVehicle returns the first vehicle standing on cell (x, y).
func (s *State) FindVehicle(x, y int) (model.Vehicle, bool) {
	for _, v := range s.vehicles {
		if v.X == x && v.Y == y {
			return v, true
		}
	}
	return model.Vehicle{}, false
}

// Vehicle looks a vehicle up by id.
func (s *State) Vehicle(id model.VehicleID) (model.Vehicle, bool) {
	if i := s.vehicleIndex(id); i >= 0 {
		return s.vehicles[i], true
	}
	return model.Vehicle{}, false
}

// AddEdge creates a local edge object for data and notifies observers.
func (s *State) AddEdge(data model.EdgeData) Edge {
	e := s.newEdge(data)
	s.edges = append(s.edges, e)
	s.notify(func(o Observer) {
		if o.EdgeAdded != nil {
			o.EdgeAdded(e)
		}
	})
	return e
}

// RemoveEdge removes the edge with the given local id. It reports whether
// such an edge existed.
func (s *State) RemoveEdge(localID string) bool {
	for i, e := range s.edges {
		if e.LocalID != localID {
			continue
		}
		s.edges = append(s.edges[:i], s.edges[i+1:]...)
		s.notify(func(o Observer) {
			if o.EdgeRemoved != nil {
				o.EdgeRemoved(e)
			}
		})
		return true
	}
	return false
}

// ResetEdges replaces every edge with new local edge objects for data.
func (s *State) ResetEdges(data []model.EdgeData) {
	edges := make([]Edge, 0, len(data))
	for _, d := range data {
		edges = append(edges, s.newEdge(d))
	}
	s.edges = edges
	snapshot := s.Edges()
	s.notify(func(o Observer) {
		if o.EdgesReset != nil {
			o.EdgesReset(snapshot)
		}
	})
}

// AddVehicle inserts v. A vehicle whose id is already present is ignored
// and AddVehicle returns false.
func (s *State) AddVehicle(v model.Vehicle) bool {
	if s.vehicleIndex(v.ID) >= 0 {
		return false
	}
	s.vehicles = append(s.vehicles, v)
	s.notify(func(o Observer) {
		if o.VehicleAdded != nil {
			o.VehicleAdded(v)
		}
	})
	return true
}

// UpdateVehicle applies p to the vehicle it names.
func (s *State) UpdateVehicle(p model.VehiclePatch) (model.Vehicle, error) {
	i := s.vehicleIndex(p.ID)
	if i < 0 {
		return model.Vehicle{}, ErrVehicleNotFound
	}
	prev := s.vehicles[i]
	cur := p.Apply(prev)
	if cur == prev {
		return cur, nil
	}
	s.vehicles[i] = cur
	s.notify(func(o Observer) {
		if o.VehicleUpdated != nil {
			o.VehicleUpdated(prev, cur)
		}
	})
	return cur, nil
}

// RemoveVehicle removes the vehicle with the given id.
func (s *State) RemoveVehicle(id model.VehicleID) (model.Vehicle, error) {
	i := s.vehicleIndex(id)
	if i < 0 {
		return model.Vehicle{}, ErrVehicleNotFound
	}
	v := s.vehicles[i]
	s.vehicles = append(s.vehicles[:i], s.vehicles[i+1:]...)
	s.notify(func(o Observer) {
		if o.VehicleRemoved != nil {
			o.VehicleRemoved(v)
		}
	})
	return v, nil
}

// ResetVehicles replaces every vehicle. Later duplicates of an id are dropped.
func (s *State) ResetVehicles(vehicles []model.Vehicle) {
	s.vehicles = make([]model.Vehicle, 0, len(vehicles))
	seen := make(map[model.VehicleID]bool, len(vehicles))
	for _, v := range vehicles {
		if seen[v.ID] {
			continue
		}
		seen[v.ID] = true
		s.vehicles = append(s.vehicles, v)
	}
	snapshot := s.Vehicles()
	s.notify(func(o Observer) {
		if o.VehiclesReset != nil {
			o.VehiclesReset(snapshot)
		}
	})
}

func (s *State) newEdge(data model.EdgeData) Edge {
	s.nextLocal++
	return Edge{
		LocalID: "c" + strconv.Itoa(s.nextLocal),
		From:    data.From,
		To:      data.To,
	}
}

func (s *State) vehicleIndex(id model.VehicleID) int {
	for i, v := range s.vehicles {
		if v.ID == id {
			return i
		}
	}
	return -1
}

func (s *State) notify(fn func(Observer)) {
	for _, o := range s.observers {
		if o != nil {
			fn(*o)
		}
	}
}
