package navgraph

import (
	"errors"
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"gridless-router/geometry"
)

// rectPadding widens every rectangle slightly. rtreego treats boxes that only
// touch as disjoint, while the visibility prefilter needs closed intervals.
const rectPadding = 1e-7

var errNonFiniteBox = errors.New("bounding box is not finite")

// segmentEntry wraps a blocking segment for R-tree storage
type segmentEntry struct {
	segment geometry.LineSegment
	bbox    rtreego.Rect
}

// Bounds implements rtreego.Spatial interface
func (e *segmentEntry) Bounds() rtreego.Rect {
	return e.bbox
}

// spatialIndex manages blocking segment queries
type spatialIndex struct {
	tree *rtreego.Rtree
	all  []geometry.LineSegment
	// loose holds segments whose box could not be indexed (non-finite)
	loose []geometry.LineSegment
}

// newSpatialIndex creates a new spatial index over the segments
func newSpatialIndex(segments []geometry.LineSegment) *spatialIndex {
	tree := rtreego.NewTree(2, 25, 50) // 2D, min 25, max 50 entries per node
	si := &spatialIndex{tree: tree, all: segments}

	for _, segment := range segments {
		bbox, err := toRect(segment.BoundingBox())
		if err != nil {
			si.loose = append(si.loose, segment)
			continue
		}
		tree.Insert(&segmentEntry{segment: segment, bbox: bbox})
	}

	return si
}

// query returns the segments whose boxes may overlap the given box
func (si *spatialIndex) query(box orb.Bound) []geometry.LineSegment {
	rect, err := toRect(box)
	if err != nil {
		return si.all
	}

	results := si.tree.SearchIntersect(rect)
	segments := make([]geometry.LineSegment, 0, len(results)+len(si.loose))
	for _, item := range results {
		segments = append(segments, item.(*segmentEntry).segment)
	}
	return append(segments, si.loose...)
}

// size returns the number of indexed segments
func (si *spatialIndex) size() int {
	return si.tree.Size()
}

// toRect converts a closed box into a padded rtreego rectangle
func toRect(box orb.Bound) (rtreego.Rect, error) {
	for _, v := range []float64{box.Min[0], box.Min[1], box.Max[0], box.Max[1]} {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return rtreego.Rect{}, errNonFiniteBox
		}
	}
	return rtreego.NewRect(
		rtreego.Point{box.Min[0] - rectPadding, box.Min[1] - rectPadding},
		[]float64{
			box.Max[0] - box.Min[0] + 2*rectPadding,
			box.Max[1] - box.Min[1] + 2*rectPadding,
		},
	)
}
