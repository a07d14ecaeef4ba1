package service

import (
	"context"

	"github.com/wricardo/traffic-editor/model"
	"github.com/wricardo/traffic-editor/protocol"
	"github.com/wricardo/traffic-editor/server/config"
	"github.com/wricardo/traffic-editor/server/store"
)

// WorldService defines all world-related operations
type WorldService interface {
	// World lifecycle
	OpenWorld(ctx context.Context, worldID string) (*WorldInfo, error)
	GetWorld(ctx context.Context, worldID string) (*WorldInfo, error)
	ListWorlds(ctx context.Context) ([]*WorldInfo, error)
	DeleteWorld(ctx context.Context, worldID string) error
	Snapshot(ctx context.Context, worldID string) (*protocol.Snapshot, error)
	WithSnapshot(ctx context.Context, worldID string, fn func(*protocol.Snapshot) error) error

	// Edges
	AddEdge(ctx context.Context, worldID string, e model.EdgeData) error
	RemoveEdge(ctx context.Context, worldID string, key model.EdgeKey) error
	DrawPath(ctx context.Context, worldID string, from, to model.Position) (*PathResult, error)

	// Vehicles
	AddVehicle(ctx context.Context, worldID string, x, y int, color string) (model.Vehicle, error)
	RemoveVehicle(ctx context.Context, worldID string, id model.VehicleID) error
	MoveVehicle(ctx context.Context, worldID string, id model.VehicleID, pos model.Position) error
	StepVehicles(ctx context.Context, worldID string, next StepFunc) (int, error)

	// Presets
	ListPresets(ctx context.Context) ([]*config.PresetInfo, error)
}

// StepFunc picks the next cell for v on net. Returning false leaves v in place.
type StepFunc func(net *config.Network, v model.Vehicle) (model.Position, bool)

// WorldStore defines world storage operations
type WorldStore interface {
	Get(id string) (*store.World, error)
	GetOrCreate(id string, seed *protocol.SnapshotData) (*store.World, error)
	List() []*store.World
	Delete(id string) error
}

// PresetSource loads world presets
type PresetSource interface {
	LoadPreset(name string) (*config.Preset, error)
	ListPresets() ([]*config.PresetInfo, error)
}

// Broadcaster delivers an event to every client watching a world
type Broadcaster interface {
	Broadcast(worldID string, msg protocol.Message)
}
