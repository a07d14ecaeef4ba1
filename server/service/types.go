package service

import (
	"time"

	"github.com/wricardo/traffic-editor/model"
)

// WorldInfo provides information about a world
type WorldInfo struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	Edges          int       `json:"edges"`
	Vehicles       int       `json:"vehicles"`
}

// PathResult reports what DrawPath did
type PathResult struct {
	Path    []model.Position `json:"path"`
	Erased  bool             `json:"erased"`
	Added   []model.EdgeKey  `json:"added,omitempty"`
	Removed []model.EdgeKey  `json:"removed,omitempty"`
}
