// Command analyze prints quick, human-readable heuristics about the preset
// files in a directory (default "presets"). It summarizes road cells, dead
// ends and one-way entry points, and reports how much of the network each
// vehicle can reach by following its roads.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/wricardo/traffic-editor/model"
	"github.com/wricardo/traffic-editor/server/config"
)

// Analysis is the result of analyzing one preset
type Analysis struct {
	Name      string
	Edges     int
	Vehicles  int
	RoadCells int
	DeadEnds  []model.Position
	Sources   []model.Position
	// Reach maps each vehicle to the number of road cells it can reach
	Reach map[model.VehicleID]int
	// Stranded lists vehicles that have no outgoing road
	Stranded []model.VehicleID
}

func main() {
	dir := "presets"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil || len(files) == 0 {
		fmt.Printf("No presets found in %s\n", dir)
		os.Exit(1)
	}
	sort.Strings(files)

	for _, f := range files {
		fmt.Printf("\n=== Analyzing %s ===\n", filepath.Base(f))
		p, err := config.LoadFile(f)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		printAnalysis(os.Stdout, analyzePreset(p))
	}
}

func analyzePreset(p *config.Preset) Analysis {
	net := config.NewNetwork(p.Edges)
	a := Analysis{
		Name:      p.Name,
		Edges:     len(p.Edges),
		Vehicles:  len(p.Vehicles),
		RoadCells: len(net.Cells()),
		DeadEnds:  net.DeadEnds(),
		Sources:   net.Sources(),
		Reach:     make(map[model.VehicleID]int),
	}

	for i, v := range p.Vehicles {
		id := v.ID
		if id == "" {
			id = model.VehicleID(fmt.Sprintf("#%d", i+1))
		}
		if len(net.Next(v.Position())) == 0 {
			a.Stranded = append(a.Stranded, id)
		}
		reached := 0
		for cell := range net.Reachable(v.Position()) {
			if net.Touches(cell) {
				reached++
			}
		}
		a.Reach[id] = reached
	}
	return a
}

func printAnalysis(w io.Writer, a Analysis) {
	fmt.Fprintf(w, "Name: %s\n", a.Name)
	fmt.Fprintf(w, "Edges: %d\n", a.Edges)
	fmt.Fprintf(w, "Road cells: %d\n", a.RoadCells)
	fmt.Fprintf(w, "Vehicles: %d\n", a.Vehicles)

	if len(a.DeadEnds) > 0 {
		fmt.Fprintf(w, "WARNING: %d dead ends:", len(a.DeadEnds))
		for _, p := range a.DeadEnds {
			fmt.Fprintf(w, " (%s)", p)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "No dead ends")
	}

	if len(a.Sources) > 0 {
		fmt.Fprintf(w, "Entry-only cells: %d\n", len(a.Sources))
	}

	ids := make([]string, 0, len(a.Reach))
	for id := range a.Reach {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "Vehicle %s reaches %d/%d road cells\n", id, a.Reach[model.VehicleID(id)], a.RoadCells)
	}
	for _, id := range a.Stranded {
		fmt.Fprintf(w, "WARNING: vehicle %s has no outgoing road\n", id)
	}
}
