package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

// Point is an exact 2D coordinate. Points are compared and hashed by value,
// so wall endpoints must be pre-rounded for shared corners to match.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance calculates Euclidean distance between two points
func (p Point) Distance(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Orb converts the point to its orb representation
func (p Point) Orb() orb.Point {
	return orb.Point{p.X, p.Y}
}

// FromOrb converts an orb point
func FromOrb(p orb.Point) Point {
	return Point{X: p.X(), Y: p.Y()}
}

// Offset returns the point at the given distance along angle (radians)
func (p Point) Offset(angle, distance float64) Point {
	return Point{
		X: p.X + math.Cos(angle)*distance,
		Y: p.Y + math.Sin(angle)*distance,
	}
}

// AngleTo returns the direction from p to other, normalized to [0, 2π)
func (p Point) AngleTo(other Point) float64 {
	return NormalizeAngle(math.Atan2(other.Y-p.Y, other.X-p.X))
}

// NormalizeAngle maps an angle in radians into [0, 2π)
func NormalizeAngle(angle float64) float64 {
	a := math.Mod(angle, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	// Mod of a tiny negative value can round up to exactly 2π
	if a >= 2*math.Pi {
		a = 0
	}
	return a
}

// LineSegment represents a line segment between two points
type LineSegment struct {
	P1, P2 Point
}

// Length returns the Euclidean length of the segment
func (s LineSegment) Length() float64 {
	return s.P1.Distance(s.P2)
}

// BoundingBox returns the smallest axis-aligned box containing both endpoints
func (s LineSegment) BoundingBox() orb.Bound {
	return orb.Bound{
		Min: orb.Point{math.Min(s.P1.X, s.P2.X), math.Min(s.P1.Y, s.P2.Y)},
		Max: orb.Point{math.Max(s.P1.X, s.P2.X), math.Max(s.P1.Y, s.P2.Y)},
	}
}

// BoxesOverlap reports closed-interval overlap of two boxes on both axes.
// Boxes that only touch along an edge or corner overlap.
func BoxesOverlap(a, b orb.Bound) bool {
	return a.Intersects(b)
}

// Intersects checks if two line segments cross.
//
// One segment has to straddle the other's supporting line strictly while the
// other at least touches the first one's line. Parallel and collinear
// segments never intersect, and neither do segments that only share an
// endpoint. A segment passing exactly through the other's endpoint while
// straddling its line does intersect, so a path cannot slip through the
// vertex where two walls meet.
func (s LineSegment) Intersects(other LineSegment) bool {
	d1 := direction(other.P1, other.P2, s.P1)
	d2 := direction(other.P1, other.P2, s.P2)
	d3 := direction(s.P1, s.P2, other.P1)
	d4 := direction(s.P1, s.P2, other.P2)

	straddlesOther := opposite(d1, d2)
	otherStraddles := opposite(d3, d4)

	if straddlesOther && (otherStraddles || d3 == 0 || d4 == 0) {
		return true
	}
	if otherStraddles && (d1 == 0 || d2 == 0) {
		return true
	}
	return false
}

// direction calculates the cross product to determine orientation
func direction(p1, p2, p3 Point) float64 {
	return (p3.X-p1.X)*(p2.Y-p1.Y) - (p2.X-p1.X)*(p3.Y-p1.Y)
}

func opposite(a, b float64) bool {
	return (a > 0 && b < 0) || (a < 0 && b > 0)
}
