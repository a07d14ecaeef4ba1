package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/traffic-editor/model"
)

func edge(fx, fy, tx, ty int) model.EdgeData {
	return model.EdgeData{From: model.Position{X: fx, Y: fy}, To: model.Position{X: tx, Y: ty}}
}

func TestFindEdge(t *testing.T) {
	s := New("asdf")

	_, ok := s.FindEdge(model.Position{X: 0, Y: 0}, model.Position{X: 1, Y: 0})
	assert.False(t, ok, "empty world has no edges")

	added := s.AddEdge(edge(0, 0, 1, 0))
	s.AddEdge(edge(1, 0, 2, 0))

	found, ok := s.FindEdge(model.Position{X: 0, Y: 0}, model.Position{X: 1, Y: 0})
	require.True(t, ok)
	assert.Equal(t, added, found)

	_, ok = s.FindEdge(model.Position{X: 1, Y: 0}, model.Position{X: 0, Y: 0})
	assert.False(t, ok, "direction matters")
}

func TestLocalIDsAreUnique(t *testing.T) {
	s := New("asdf")
	a := s.AddEdge(edge(0, 0, 1, 0))
	b := s.AddEdge(edge(0, 0, 1, 0))
	assert.NotEqual(t, a.LocalID, b.LocalID)

	s.ResetEdges([]model.EdgeData{edge(0, 0, 1, 0)})
	c := s.Edges()[0]
	assert.NotEqual(t, a.LocalID, c.LocalID)
	assert.NotEqual(t, b.LocalID, c.LocalID)
}

func TestRemoveEdge(t *testing.T) {
	s := New("asdf")
	e := s.AddEdge(edge(0, 0, 1, 0))

	var removed []Edge
	s.Subscribe(Observer{EdgeRemoved: func(e Edge) { removed = append(removed, e) }})

	assert.True(t, s.RemoveEdge(e.LocalID))
	assert.False(t, s.RemoveEdge(e.LocalID))
	assert.Empty(t, s.Edges())
	assert.Equal(t, []Edge{e}, removed)
}

func TestFindVehicle(t *testing.T) {
	s := New("asdf")
	_, ok := s.FindVehicle(3, 3)
	assert.False(t, ok)

	s.AddVehicle(model.Vehicle{ID: "v1", X: 3, Y: 3, Color: "#fff"})
	v, ok := s.FindVehicle(3, 3)
	require.True(t, ok)
	assert.Equal(t, model.VehicleID("v1"), v.ID)

	_, ok = s.FindVehicle(3, 4)
	assert.False(t, ok)
}

func TestAddVehicleIgnoresDuplicateID(t *testing.T) {
	s := New("asdf")
	assert.True(t, s.AddVehicle(model.Vehicle{ID: "v1", X: 1, Y: 1}))
	assert.False(t, s.AddVehicle(model.Vehicle{ID: "v1", X: 2, Y: 2}))
	assert.Len(t, s.Vehicles(), 1)
	v, _ := s.Vehicle("v1")
	assert.Equal(t, 1, v.X)
}

func TestUpdateVehicle(t *testing.T) {
	s := New("asdf")
	s.AddVehicle(model.Vehicle{ID: "v1", X: 1, Y: 1, Color: "#abc"})

	var prev, cur model.Vehicle
	calls := 0
	s.Subscribe(Observer{VehicleUpdated: func(p, c model.Vehicle) {
		prev, cur = p, c
		calls++
	}})

	got, err := s.UpdateVehicle(model.MoveTo("v1", model.Position{X: 2, Y: 1}))
	require.NoError(t, err)
	assert.Equal(t, 2, got.X)
	assert.Equal(t, 1, prev.X)
	assert.Equal(t, 2, cur.X)
	assert.Equal(t, "#abc", cur.Color)
	assert.Equal(t, 1, calls)

	_, err = s.UpdateVehicle(model.MoveTo("v1", model.Position{X: 2, Y: 1}))
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "no notification when nothing changed")

	_, err = s.UpdateVehicle(model.MoveTo("ghost", model.Position{}))
	assert.ErrorIs(t, err, ErrVehicleNotFound)
}

func TestRemoveVehicle(t *testing.T) {
	s := New("asdf")
	s.AddVehicle(model.Vehicle{ID: "v1", X: 1, Y: 1})

	v, err := s.RemoveVehicle("v1")
	require.NoError(t, err)
	assert.Equal(t, model.VehicleID("v1"), v.ID)
	assert.Empty(t, s.Vehicles())

	_, err = s.RemoveVehicle("v1")
	assert.ErrorIs(t, err, ErrVehicleNotFound)
}

func TestResetClearsCollections(t *testing.T) {
	s := New("asdf")
	s.AddEdge(edge(0, 0, 1, 0))
	s.AddVehicle(model.Vehicle{ID: "v1"})

	var edgeResets, vehicleResets int
	s.Subscribe(Observer{
		EdgesReset:    func(es []Edge) { edgeResets++; assert.Empty(t, es) },
		VehiclesReset: func(vs []model.Vehicle) { vehicleResets++; assert.Empty(t, vs) },
	})

	for i := 0; i < 2; i++ {
		s.ResetEdges(nil)
		s.ResetVehicles(nil)
		assert.Empty(t, s.Edges())
		assert.Empty(t, s.Vehicles())
	}
	assert.Equal(t, 2, edgeResets)
	assert.Equal(t, 2, vehicleResets)
}

func TestResetVehiclesDropsDuplicateIDs(t *testing.T) {
	s := New("asdf")
	s.ResetVehicles([]model.Vehicle{{ID: "a", X: 1}, {ID: "a", X: 2}, {ID: "b"}})
	vs := s.Vehicles()
	require.Len(t, vs, 2)
	assert.Equal(t, 1, vs[0].X)
}

func TestSubscribeCancel(t *testing.T) {
	s := New("asdf")
	added := 0
	cancel := s.Subscribe(Observer{EdgeAdded: func(Edge) { added++ }})

	s.AddEdge(edge(0, 0, 1, 0))
	cancel()
	s.AddEdge(edge(1, 0, 2, 0))

	assert.Equal(t, 1, added)
}

func TestObserversNotifiedInSubscriptionOrder(t *testing.T) {
	s := New("asdf")
	var order []int
	cancels := make([]func(), 8)
	for i := range cancels {
		i := i
		cancels[i] = s.Subscribe(Observer{EdgeAdded: func(Edge) { order = append(order, i) }})
	}
	cancels[3]()
	cancels[5]()

	for round := 0; round < 5; round++ {
		order = nil
		s.AddEdge(edge(round, 0, round+1, 0))
		assert.Equal(t, []int{0, 1, 2, 4, 6, 7}, order)
	}
}

func TestCopiesAreIndependent(t *testing.T) {
	s := New("asdf")
	s.AddVehicle(model.Vehicle{ID: "v1", X: 1})
	vs := s.Vehicles()
	vs[0].X = 99

	v, _ := s.Vehicle("v1")
	assert.Equal(t, 1, v.X)
	assert.Equal(t, "asdf", s.ID())
}
