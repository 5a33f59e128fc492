package engine

import (
	"errors"
	"fmt"
	"math"

	"gridless-router/geometry"
	"gridless-router/navgraph"
)

// ErrInvalidWall is returned when a host wall record cannot be converted
var ErrInvalidWall = errors.New("invalid wall record")

// HeightRecord is the optional vertical extent attached to a host wall
type HeightRecord struct {
	Top    *float64 `json:"top,omitempty" yaml:"top,omitempty"`
	Bottom *float64 `json:"bottom,omitempty" yaml:"bottom,omitempty"`
}

// WallRecord is a wall as the host application stores it: raw coordinates
// [x1, y1, x2, y2] and numeric enum codes.
type WallRecord struct {
	C         [4]float64    `json:"c" yaml:"c"`
	Move      int           `json:"move" yaml:"move"`
	Door      int           `json:"door" yaml:"door"`
	DoorState int           `json:"ds" yaml:"ds"`
	Height    *HeightRecord `json:"height,omitempty" yaml:"height,omitempty"`
}

// ToWall converts the record. Coordinates are rounded to integers so that
// corners shared by several walls produce identical points. The height is
// ignored unless enableHeight is set.
func (r WallRecord) ToWall(enableHeight bool) (navgraph.Wall, error) {
	for _, c := range r.C {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return navgraph.Wall{}, fmt.Errorf("%w: non-finite coordinate %v", ErrInvalidWall, r.C)
		}
	}
	move, err := ParseMoveKind(r.Move)
	if err != nil {
		return navgraph.Wall{}, err
	}
	door, err := ParseDoorKind(r.Door)
	if err != nil {
		return navgraph.Wall{}, err
	}
	state, err := ParseDoorState(r.DoorState)
	if err != nil {
		return navgraph.Wall{}, err
	}

	height := navgraph.FullHeight()
	if enableHeight && r.Height != nil {
		if r.Height.Top != nil {
			height.Top = *r.Height.Top
		}
		if r.Height.Bottom != nil {
			height.Bottom = *r.Height.Bottom
		}
	}

	return navgraph.Wall{
		P1:        geometry.Point{X: math.Round(r.C[0]), Y: math.Round(r.C[1])},
		P2:        geometry.Point{X: math.Round(r.C[2]), Y: math.Round(r.C[3])},
		Move:      move,
		Door:      door,
		DoorState: state,
		Height:    height,
	}, nil
}

// ConvertWalls converts a batch of host records
func ConvertWalls(records []WallRecord, enableHeight bool) ([]navgraph.Wall, error) {
	walls := make([]navgraph.Wall, 0, len(records))
	for i, record := range records {
		wall, err := record.ToWall(enableHeight)
		if err != nil {
			return nil, fmt.Errorf("wall %d: %w", i, err)
		}
		walls = append(walls, wall)
	}
	return walls, nil
}

// ParseMoveKind maps a host movement code
func ParseMoveKind(v int) (navgraph.MoveKind, error) {
	switch k := navgraph.MoveKind(v); k {
	case navgraph.MoveNone, navgraph.MoveLimited, navgraph.MoveNormal:
		return k, nil
	}
	return 0, fmt.Errorf("%w: unknown move kind %d", ErrInvalidWall, v)
}

// ParseDoorKind maps a host door code
func ParseDoorKind(v int) (navgraph.DoorKind, error) {
	switch k := navgraph.DoorKind(v); k {
	case navgraph.DoorNone, navgraph.DoorDoor, navgraph.DoorSecret:
		return k, nil
	}
	return 0, fmt.Errorf("%w: unknown door kind %d", ErrInvalidWall, v)
}

// ParseDoorState maps a host door state code
func ParseDoorState(v int) (navgraph.DoorState, error) {
	switch s := navgraph.DoorState(v); s {
	case navgraph.DoorClosed, navgraph.DoorOpen, navgraph.DoorLocked:
		return s, nil
	}
	return 0, fmt.Errorf("%w: unknown door state %d", ErrInvalidWall, v)
}
