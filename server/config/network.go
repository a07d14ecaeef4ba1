package config

import (
	"sort"

	"github.com/wricardo/traffic-editor/model"
)

// Network is the directed road graph described by a set of edges.
type Network struct {
	out map[model.Position][]model.Position
	in  map[model.Position]int
}

// NewNetwork indexes edges.
func NewNetwork(edges []model.EdgeData) *Network {
	n := &Network{
		out: make(map[model.Position][]model.Position),
		in:  make(map[model.Position]int),
	}
	for _, e := range edges {
		n.out[e.From] = append(n.out[e.From], e.To)
		n.in[e.To]++
	}
	return n
}

// Touches reports whether any edge starts or ends on p.
func (n *Network) Touches(p model.Position) bool {
	return len(n.out[p]) > 0 || n.in[p] > 0
}

// Cells returns every cell an edge touches, sorted.
func (n *Network) Cells() []model.Position {
	set := make(map[model.Position]bool)
	for p := range n.out {
		set[p] = true
	}
	for p := range n.in {
		set[p] = true
	}
	return sortedPositions(set)
}

// DeadEnds returns the cells that can be entered but not left, sorted.
func (n *Network) DeadEnds() []model.Position {
	set := make(map[model.Position]bool)
	for p := range n.in {
		if len(n.out[p]) == 0 {
			set[p] = true
		}
	}
	return sortedPositions(set)
}

// Sources returns the cells that can be left but not entered, sorted.
func (n *Network) Sources() []model.Position {
	set := make(map[model.Position]bool)
	for p := range n.out {
		if n.in[p] == 0 {
			set[p] = true
		}
	}
	return sortedPositions(set)
}

// Reachable returns every cell reachable from start by following edges,
// start included.
func (n *Network) Reachable(start model.Position) map[model.Position]bool {
	visited := map[model.Position]bool{start: true}
	queue := []model.Position{start}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range n.out[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return visited
}

func sortedPositions(set map[model.Position]bool) []model.Position {
	out := make([]model.Position, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// Next returns the cells reachable from p in one step, in edge order.
func (n *Network) Next(p model.Position) []model.Position {
	return n.out[p]
}
