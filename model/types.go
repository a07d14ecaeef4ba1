package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidEdgeKey  = errors.New("invalid edge key")
	ErrInvalidPosition = errors.New("invalid position")
)

// Position is an integer grid cell.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String returns the "x,y" form used inside edge keys.
func (p Position) String() string {
	return strconv.Itoa(p.X) + "," + strconv.Itoa(p.Y)
}

// ParsePosition parses the "x,y" form produced by Position.String.
func ParsePosition(s string) (Position, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return Position{}, fmt.Errorf("%w: %q", ErrInvalidPosition, s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return Position{}, fmt.Errorf("%w: %q", ErrInvalidPosition, s)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return Position{}, fmt.Errorf("%w: %q", ErrInvalidPosition, s)
	}
	return Position{X: x, Y: y}, nil
}

// EdgeData is a directed road segment as it travels over the wire.
type EdgeData struct {
	From Position `json:"from"`
	To   Position `json:"to"`
}

// Key returns the edge key for this edge.
func (e EdgeData) Key() EdgeKey {
	return NewEdgeKey(e.From, e.To)
}

// Reverse returns the same segment pointing the other way.
func (e EdgeData) Reverse() EdgeData {
	return EdgeData{From: e.To, To: e.From}
}

// EdgeKey identifies an edge in REST paths: "fx,fy:tx,ty".
type EdgeKey string

// NewEdgeKey builds the key of the edge from -> to.
func NewEdgeKey(from, to Position) EdgeKey {
	return EdgeKey(from.String() + ":" + to.String())
}

// ParseEdgeKey parses a key produced by NewEdgeKey.
func ParseEdgeKey(s string) (EdgeData, error) {
	fs, ts, ok := strings.Cut(s, ":")
	if !ok {
		return EdgeData{}, fmt.Errorf("%w: %q", ErrInvalidEdgeKey, s)
	}
	from, err := ParsePosition(fs)
	if err != nil {
		return EdgeData{}, fmt.Errorf("%w: %q", ErrInvalidEdgeKey, s)
	}
	to, err := ParsePosition(ts)
	if err != nil {
		return EdgeData{}, fmt.Errorf("%w: %q", ErrInvalidEdgeKey, s)
	}
	return EdgeData{From: from, To: to}, nil
}

// String implements fmt.Stringer.
func (k EdgeKey) String() string { return string(k) }

// VehicleID is a server-assigned vehicle identifier. Servers may send it as
// a JSON string or a JSON number; it is always held as its textual form.
type VehicleID string

// UnmarshalJSON accepts both string and numeric ids.
func (id *VehicleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = VehicleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("vehicle id must be a string or number: %w", err)
	}
	*id = VehicleID(n.String())
	return nil
}

// String implements fmt.Stringer.
func (id VehicleID) String() string { return string(id) }

// Vehicle is a point entity on the grid. X and Y change as the server moves
// it; Color is fixed at creation.
type Vehicle struct {
	ID    VehicleID `json:"id"`
	X     int       `json:"x"`
	Y     int       `json:"y"`
	Color string    `json:"color"`
}

// Position returns the cell the vehicle occupies.
func (v Vehicle) Position() Position {
	return Position{X: v.X, Y: v.Y}
}

// VehiclePatch carries the fields of a vehicleUpdated event. Absent fields
// are nil and leave the vehicle untouched.
type VehiclePatch struct {
	ID VehicleID `json:"id"`
	X  *int      `json:"x,omitempty"`
	Y  *int      `json:"y,omitempty"`
}

// Apply returns v with the patch's fields overwritten.
func (p VehiclePatch) Apply(v Vehicle) Vehicle {
	if p.X != nil {
		v.X = *p.X
	}
	if p.Y != nil {
		v.Y = *p.Y
	}
	return v
}

// MoveTo returns a patch moving vehicle id to pos.
func MoveTo(id VehicleID, pos Position) VehiclePatch {
	x, y := pos.X, pos.Y
	return VehiclePatch{ID: id, X: &x, Y: &y}
}
