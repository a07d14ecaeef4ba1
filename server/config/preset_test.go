package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/traffic-editor/model"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Preset)
		wantValid bool
		wantError string
		wantWarn  string
	}{
		{
			name:      "valid",
			mutate:    func(*Preset) {},
			wantValid: true,
		},
		{
			name:      "missing name",
			mutate:    func(p *Preset) { p.Name = "" },
			wantError: "name is required",
		},
		{
			name: "loop edge",
			mutate: func(p *Preset) {
				p.Edges = append(p.Edges, model.EdgeData{From: p0(), To: p0()})
			},
			wantError: "same cell",
		},
		{
			name: "long edge",
			mutate: func(p *Preset) {
				p.Edges = append(p.Edges, model.EdgeData{From: p0(), To: model.Position{X: 2, Y: 0}})
			},
			wantError: "neighbouring",
		},
		{
			name: "duplicate edge",
			mutate: func(p *Preset) {
				p.Edges = append(p.Edges, p.Edges[0])
			},
			wantError: "duplicate",
		},
		{
			name: "bad color",
			mutate: func(p *Preset) {
				p.Vehicles[0].Color = "red"
			},
			wantError: "invalid color",
		},
		{
			name: "duplicate vehicle id",
			mutate: func(p *Preset) {
				p.Vehicles = []model.Vehicle{{ID: "a", Color: "#fff"}, {ID: "a", Color: "#fff"}}
			},
			wantError: "reuses id",
		},
		{
			name: "off-road vehicle",
			mutate: func(p *Preset) {
				p.Vehicles = append(p.Vehicles, model.Vehicle{X: 9, Y: 9, Color: "#000"})
			},
			wantValid: true,
			wantWarn:  "off-road",
		},
		{
			name: "dead end",
			mutate: func(p *Preset) {
				p.Edges = append(p.Edges, model.EdgeData{From: model.Position{X: 1, Y: 1}, To: model.Position{X: 2, Y: 2}})
			},
			wantValid: true,
			wantWarn:  "dead-end",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			preset := createValidPreset()
			tt.mutate(preset)
			r := Validate(preset)

			if r.Valid != tt.wantValid {
				t.Fatalf("Valid = %v, want %v (errors: %v)", r.Valid, tt.wantValid, r.Errors)
			}
			if tt.wantError != "" && !containsSubstring(r.Errors, tt.wantError) {
				t.Errorf("Expected error containing %q, got %v", tt.wantError, r.Errors)
			}
			if tt.wantWarn != "" && !containsSubstring(r.Warnings, tt.wantWarn) {
				t.Errorf("Expected warning containing %q, got %v", tt.wantWarn, r.Warnings)
			}
			if tt.wantValid && tt.wantWarn == "" && len(r.Warnings) > 0 {
				t.Errorf("Unexpected warnings: %v", r.Warnings)
			}
		})
	}
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	writePresetFile(t, dir, "ok", createValidPreset())
	os.WriteFile(filepath.Join(dir, "bad.json"), []byte("not json"), 0644)

	if r := ValidateFile(filepath.Join(dir, "ok.json")); !r.Valid || r.File != "ok.json" {
		t.Errorf("Expected ok.json to be valid, got %+v", r)
	}
	if r := ValidateFile(filepath.Join(dir, "bad.json")); r.Valid {
		t.Error("Expected bad.json to be invalid")
	}
	if r := ValidateFile(filepath.Join(dir, "missing.json")); r.Valid {
		t.Error("Expected missing file to be invalid")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	writePresetFile(t, dir, "ok", createValidPreset())
	os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0644)

	p, err := LoadFile(filepath.Join(dir, "ok.json"))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if p.Name != createValidPreset().Name || len(p.Edges) == 0 {
		t.Errorf("Unexpected preset: %+v", p)
	}

	if _, err := LoadFile(filepath.Join(dir, "bad.json")); err == nil {
		t.Error("Expected parse error")
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Expected read error")
	}
}

func TestPreset_Snapshot(t *testing.T) {
	preset := createValidPreset()
	snap := preset.Snapshot()
	snap.Edges[0].From.X = 42

	if preset.Edges[0].From.X == 42 {
		t.Error("Snapshot must copy edges")
	}
}

func TestNetwork(t *testing.T) {
	net := NewNetwork([]model.EdgeData{
		{From: p(0, 0), To: p(1, 0)},
		{From: p(1, 0), To: p(2, 0)},
		{From: p(3, 3), To: p(2, 0)},
	})

	if got := net.DeadEnds(); len(got) != 1 || got[0] != p(2, 0) {
		t.Errorf("DeadEnds() = %v", got)
	}
	if got := net.Sources(); len(got) != 2 || got[0] != p(0, 0) || got[1] != p(3, 3) {
		t.Errorf("Sources() = %v", got)
	}
	if got := len(net.Cells()); got != 4 {
		t.Errorf("Expected 4 cells, got %d", got)
	}
	reach := net.Reachable(p(0, 0))
	if len(reach) != 3 || reach[p(3, 3)] {
		t.Errorf("Reachable(0,0) = %v", reach)
	}
}

func p0() model.Position { return model.Position{} }

func containsSubstring(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
