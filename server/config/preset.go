package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wricardo/traffic-editor/model"
	"github.com/wricardo/traffic-editor/protocol"
)

// Preset is the initial content of a world.
type Preset struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Edges       []model.EdgeData `json:"edges"`
	Vehicles    []model.Vehicle  `json:"vehicles"`
}

// Snapshot returns the preset as seed data for a new world.
func (p *Preset) Snapshot() *protocol.SnapshotData {
	return &protocol.SnapshotData{
		Edges:    append([]model.EdgeData{}, p.Edges...),
		Vehicles: append([]model.Vehicle{}, p.Vehicles...),
	}
}

// PresetInfo describes a preset file without its content.
type PresetInfo struct {
	Filename    string `json:"filename"`
	PresetID    string `json:"preset_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Edges       int    `json:"edges"`
	Vehicles    int    `json:"vehicles"`
}

// ValidationResult captures the outcome of validating a single preset.
type ValidationResult struct {
	File     string
	Valid    bool
	Errors   []string
	Warnings []string
	Info     []string
}

// Validate checks a preset's structure and road network. Errors make the
// preset unusable; warnings point at layouts that load but behave oddly.
func Validate(p *Preset) ValidationResult {
	result := ValidationResult{Valid: true}
	fail := func(format string, args ...interface{}) {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
	}

	if p.Name == "" {
		fail("name is required")
	}

	seen := make(map[model.EdgeKey]bool, len(p.Edges))
	for i, e := range p.Edges {
		key := e.Key()
		switch {
		case e.From == e.To:
			fail("edge %d (%s) starts and ends on the same cell", i, key)
		case abs(e.To.X-e.From.X) > 1 || abs(e.To.Y-e.From.Y) > 1:
			fail("edge %d (%s) does not join neighbouring cells", i, key)
		case seen[key]:
			fail("edge %d (%s) is a duplicate", i, key)
		}
		seen[key] = true
	}

	ids := make(map[model.VehicleID]bool, len(p.Vehicles))
	for i, v := range p.Vehicles {
		if _, ok := model.ParseColor(v.Color); !ok {
			fail("vehicle %d has invalid color %q", i, v.Color)
		}
		if v.ID != "" {
			if ids[v.ID] {
				fail("vehicle %d reuses id %s", i, v.ID)
			}
			ids[v.ID] = true
		}
	}

	if !result.Valid {
		return result
	}

	net := NewNetwork(p.Edges)
	for _, v := range p.Vehicles {
		if !net.Touches(v.Position()) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("vehicle at %s is off-road", v.Position()))
		}
	}
	if dead := net.DeadEnds(); len(dead) > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d dead-end cells, first at %s", len(dead), dead[0]))
	}

	result.Info = append(result.Info,
		fmt.Sprintf("Name: %s", p.Name),
		fmt.Sprintf("Edges: %d", len(p.Edges)),
		fmt.Sprintf("Vehicles: %d", len(p.Vehicles)),
		fmt.Sprintf("Road cells: %d", len(net.Cells())),
	)
	return result
}

// LoadFile reads the preset at path without validating it.
func LoadFile(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset: %w", err)
	}
	var p Preset
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse preset %s: %w", filepath.Base(path), err)
	}
	return &p, nil
}

// ValidateFile reads and validates the preset at path.
func ValidateFile(path string) ValidationResult {
	result := ValidationResult{File: filepath.Base(path)}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to read file: %v", err))
		return result
	}

	var p Preset
	if err := json.Unmarshal(data, &p); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("invalid JSON: %v", err))
		return result
	}

	r := Validate(&p)
	r.File = result.File
	return r
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
