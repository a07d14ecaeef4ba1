package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var (
	ErrPresetNotFound = errors.New("preset not found")
	ErrInvalidPreset  = errors.New("invalid preset")
)

// Manager handles preset loading and caching
type Manager struct {
	presetDir string
	presets   map[string]*Preset
	mu        sync.RWMutex
}

// NewManager creates a new preset manager
func NewManager(presetDir string) (*Manager, error) {
	if _, err := os.Stat(presetDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("preset directory does not exist: %s", presetDir)
	}

	return &Manager{
		presetDir: presetDir,
		presets:   make(map[string]*Preset),
	}, nil
}

// Dir returns the preset directory.
func (m *Manager) Dir() string { return m.presetDir }

// LoadPreset loads a preset by name
func (m *Manager) LoadPreset(name string) (*Preset, error) {
	name = strings.TrimSuffix(name, ".json")
	if !validName(name) {
		return nil, ErrPresetNotFound
	}

	m.mu.RLock()
	if p, exists := m.presets[name]; exists {
		m.mu.RUnlock()
		return p, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if p, exists := m.presets[name]; exists {
		return p, nil
	}

	data, err := os.ReadFile(filepath.Join(m.presetDir, name+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPresetNotFound
		}
		return nil, fmt.Errorf("failed to read preset file: %w", err)
	}

	var p Preset
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: failed to parse preset: %v", ErrInvalidPreset, err)
	}
	if r := Validate(&p); !r.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPreset, strings.Join(r.Errors, "; "))
	}

	m.presets[name] = &p
	return &p, nil
}

// ListPresets returns information about all loadable presets
func (m *Manager) ListPresets() ([]*PresetInfo, error) {
	entries, err := os.ReadDir(m.presetDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset directory: %w", err)
	}

	var presets []*PresetInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")

		p, err := m.LoadPreset(id)
		if err != nil {
			// Skip invalid presets
			continue
		}

		presets = append(presets, &PresetInfo{
			Filename:    entry.Name(),
			PresetID:    id,
			Name:        p.Name,
			Description: p.Description,
			Edges:       len(p.Edges),
			Vehicles:    len(p.Vehicles),
		})
	}

	sort.Slice(presets, func(i, j int) bool { return presets[i].PresetID < presets[j].PresetID })
	return presets, nil
}

// SavePreset validates p and writes it to disk
func (m *Manager) SavePreset(name string, p *Preset) error {
	name = strings.TrimSuffix(name, ".json")
	if !validName(name) {
		return fmt.Errorf("%w: bad name %q", ErrInvalidPreset, name)
	}
	if r := Validate(p); !r.Valid {
		return fmt.Errorf("%w: %s", ErrInvalidPreset, strings.Join(r.Errors, "; "))
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preset: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.presetDir, name+".json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write preset file: %w", err)
	}

	m.mu.Lock()
	m.presets[name] = p
	m.mu.Unlock()
	return nil
}

// RefreshCache drops every cached preset
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presets = make(map[string]*Preset)
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
