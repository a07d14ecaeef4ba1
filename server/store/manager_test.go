package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/traffic-editor/model"
	"github.com/wricardo/traffic-editor/protocol"
)

func createTestSeed() *protocol.SnapshotData {
	return &protocol.SnapshotData{
		Edges: []model.EdgeData{
			{From: model.Position{X: 0, Y: 0}, To: model.Position{X: 1, Y: 0}},
			{From: model.Position{X: 1, Y: 0}, To: model.Position{X: 2, Y: 0}},
			{From: model.Position{X: 0, Y: 0}, To: model.Position{X: 1, Y: 0}},
		},
		Vehicles: []model.Vehicle{
			{ID: "a", X: 0, Y: 0, Color: "#ff0000"},
			{X: 2, Y: 0, Color: "#00ff00"},
		},
	}
}

func TestManager_Create(t *testing.T) {
	manager := NewManager()

	t.Run("create with custom ID", func(t *testing.T) {
		w, err := manager.Create("asdf", nil)
		if err != nil {
			t.Fatalf("Failed to create world: %v", err)
		}
		if w.ID != "asdf" {
			t.Errorf("Expected world ID 'asdf', got '%s'", w.ID)
		}
		snap := w.Snapshot()
		if len(snap.Edges) != 0 || len(snap.Vehicles) != 0 {
			t.Errorf("Expected empty world, got %+v", snap)
		}
	})

	t.Run("empty ID is rejected", func(t *testing.T) {
		if _, err := manager.Create("", nil); !errors.Is(err, ErrInvalidWorldID) {
			t.Errorf("Expected ErrInvalidWorldID, got %v", err)
		}
		if _, err := manager.GetOrCreate("", nil); !errors.Is(err, ErrInvalidWorldID) {
			t.Errorf("Expected ErrInvalidWorldID from GetOrCreate, got %v", err)
		}
	})

	t.Run("duplicate world ID", func(t *testing.T) {
		_, err := manager.Create("asdf", nil)
		if !errors.Is(err, ErrWorldAlreadyExists) {
			t.Errorf("Expected ErrWorldAlreadyExists, got %v", err)
		}
	})

	t.Run("IDs are case-sensitive", func(t *testing.T) {
		if _, err := manager.Create("ASDF", nil); err != nil {
			t.Errorf("Expected distinct world for 'ASDF', got %v", err)
		}
	})

	t.Run("create from seed", func(t *testing.T) {
		w, err := manager.Create("seeded", createTestSeed())
		if err != nil {
			t.Fatalf("Failed to create world: %v", err)
		}
		snap := w.Snapshot()
		if len(snap.Edges) != 2 {
			t.Errorf("Expected duplicate seed edge to be dropped, got %d edges", len(snap.Edges))
		}
		if len(snap.Vehicles) != 2 {
			t.Fatalf("Expected 2 vehicles, got %d", len(snap.Vehicles))
		}
		if snap.Vehicles[1].ID == "" {
			t.Error("Expected seed vehicle without ID to get one")
		}
	})
}

func TestManager_GetOrCreate(t *testing.T) {
	manager := NewManager()

	first, err := manager.GetOrCreate("w", nil)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	second, err := manager.GetOrCreate("w", createTestSeed())
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if first != second {
		t.Error("Expected the same world on second call")
	}
	if len(second.Snapshot().Edges) != 0 {
		t.Error("Seed must only apply on creation")
	}
}

func TestManager_GetAndDelete(t *testing.T) {
	manager := NewManager()
	manager.Create("w", nil)

	if _, err := manager.Get("w"); err != nil {
		t.Errorf("Expected world, got %v", err)
	}
	if _, err := manager.Get("missing"); !errors.Is(err, ErrWorldNotFound) {
		t.Errorf("Expected ErrWorldNotFound, got %v", err)
	}
	if err := manager.Delete("w"); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
	if err := manager.Delete("w"); !errors.Is(err, ErrWorldNotFound) {
		t.Errorf("Expected ErrWorldNotFound on second delete, got %v", err)
	}
	if manager.Count() != 0 {
		t.Errorf("Expected 0 worlds, got %d", manager.Count())
	}
}

func TestManager_List(t *testing.T) {
	manager := NewManager()
	for _, id := range []string{"c", "a", "b"} {
		manager.Create(id, nil)
	}

	list := manager.List()
	if len(list) != 3 {
		t.Fatalf("Expected 3 worlds, got %d", len(list))
	}
	for i, want := range []string{"a", "b", "c"} {
		if list[i].ID != want {
			t.Errorf("List()[%d] = %s, want %s", i, list[i].ID, want)
		}
	}
}

func TestManager_CleanupIdle(t *testing.T) {
	manager := NewManager()
	old, _ := manager.Create("old", nil)
	manager.Create("fresh", nil)
	pinned, _ := manager.Create("pinned", nil)

	past := time.Now().Add(-2 * time.Hour)
	old.mu.Lock()
	old.lastAccessedAt = past
	old.mu.Unlock()
	pinned.mu.Lock()
	pinned.lastAccessedAt = past
	pinned.mu.Unlock()

	removed := manager.CleanupIdle(time.Hour, func(id string) bool { return id == "pinned" })
	if len(removed) != 1 || removed[0] != "old" {
		t.Errorf("Expected [old] removed, got %v", removed)
	}
	if manager.Count() != 2 {
		t.Errorf("Expected 2 worlds left, got %d", manager.Count())
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	manager := NewManager()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := manager.GetOrCreate("shared", nil)
			if err != nil {
				t.Errorf("GetOrCreate failed: %v", err)
				return
			}
			w.AddVehicle(i, i, "#000")
			w.AddEdge(model.EdgeData{From: model.Position{X: i, Y: 0}, To: model.Position{X: i + 1, Y: 0}})
			w.Snapshot()
		}(i)
	}
	wg.Wait()

	w, _ := manager.Get("shared")
	snap := w.Snapshot()
	if len(snap.Vehicles) != 20 || len(snap.Edges) != 20 {
		t.Errorf("Expected 20 vehicles and 20 edges, got %d and %d", len(snap.Vehicles), len(snap.Edges))
	}
}
