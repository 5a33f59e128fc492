package navgraph

import (
	"fmt"
	"math"

	"gridless-router/geometry"
)

// MoveKind classifies how a wall restricts movement. Both LIMITED and NORMAL
// block pathing; NONE never blocks.
type MoveKind int

const (
	MoveNone    MoveKind = 0
	MoveLimited MoveKind = 10
	MoveNormal  MoveKind = 20
)

func (k MoveKind) String() string {
	switch k {
	case MoveNone:
		return "none"
	case MoveLimited:
		return "limited"
	case MoveNormal:
		return "normal"
	}
	return fmt.Sprintf("MoveKind(%d)", int(k))
}

// DoorKind tells whether a wall is a door
type DoorKind int

const (
	DoorNone   DoorKind = 0
	DoorDoor   DoorKind = 1
	DoorSecret DoorKind = 2
)

func (k DoorKind) String() string {
	switch k {
	case DoorNone:
		return "none"
	case DoorDoor:
		return "door"
	case DoorSecret:
		return "secret"
	}
	return fmt.Sprintf("DoorKind(%d)", int(k))
}

// DoorState is the open/closed state of a door wall
type DoorState int

const (
	DoorClosed DoorState = 0
	DoorOpen   DoorState = 1
	DoorLocked DoorState = 2
)

func (s DoorState) String() string {
	switch s {
	case DoorClosed:
		return "closed"
	case DoorOpen:
		return "open"
	case DoorLocked:
		return "locked"
	}
	return fmt.Sprintf("DoorState(%d)", int(s))
}

// WallHeight is the inclusive vertical interval a wall occupies
type WallHeight struct {
	Top    float64
	Bottom float64
}

// FullHeight spans every elevation
func FullHeight() WallHeight {
	return WallHeight{Top: math.Inf(1), Bottom: math.Inf(-1)}
}

// Contains reports whether elevation lies within [Bottom, Top]
func (h WallHeight) Contains(elevation float64) bool {
	return h.Bottom <= elevation && elevation <= h.Top
}

// Wall is a single line-segment obstacle
type Wall struct {
	P1, P2    geometry.Point
	Move      MoveKind
	Door      DoorKind
	DoorState DoorState
	Height    WallHeight
}

// IsDoor reports whether the wall is any kind of door
func (w Wall) IsDoor() bool {
	return w.Door != DoorNone
}

// IsOpen reports whether the wall's door state is open
func (w Wall) IsOpen() bool {
	return w.DoorState == DoorOpen
}

// Blocks reports whether the wall takes part in graph construction for an
// agent at the given elevation.
func (w Wall) Blocks(elevation float64) bool {
	if w.Move == MoveNone {
		return false
	}
	if w.IsDoor() && w.IsOpen() {
		return false
	}
	return w.Height.Contains(elevation)
}

// Segment returns the wall as a line segment
func (w Wall) Segment() geometry.LineSegment {
	return geometry.LineSegment{P1: w.P1, P2: w.P2}
}
