// Package config manages world presets: JSON files that describe the edges
// and vehicles a world starts with.
//
// The config package handles:
//   - Loading presets from a directory, with caching
//   - Preset validation (see Validate)
//   - Preset discovery and listing
//
// Preset Format:
//
//	{
//	  "name": "Roundabout",
//	  "description": "A one-way loop",
//	  "edges": [{"from": {"x": 0, "y": 0}, "to": {"x": 1, "y": 0}}],
//	  "vehicles": [{"x": 0, "y": 0, "color": "#ff0000"}]
//	}
//
// Every edge joins two neighbouring cells (diagonals included). Vehicle ids
// are optional; the store assigns them when a world is seeded.
//
// Usage:
//
//	manager, err := config.NewManager("presets")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	preset, err := manager.LoadPreset("roundabout")
//	if errors.Is(err, config.ErrPresetNotFound) {
//		// start empty
//	}
package config
