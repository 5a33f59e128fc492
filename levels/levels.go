// Package levels groups agent elevations into classes that see the same set
// of walls and caches one navigation graph per class and token size.
package levels

import (
	"math"
	"sort"

	"gridless-router/navgraph"
)

// Border is an elevation at which some wall starts (bottom) or stops (top)
type Border struct {
	Elevation float64
	IsTop     bool
}

// passedBy reports whether an agent at elevation e is beyond this border.
// Heights are inclusive, so a bottom is passed at its own elevation and a
// top only above it.
func (b Border) passedBy(e float64) bool {
	if b.IsTop {
		return e > b.Elevation
	}
	return e >= b.Elevation
}

// Levels is the sorted list of wall height borders of a scene
type Levels struct {
	borders []Border
}

// DetectLevels collects the distinct height borders of all walls. Walls
// without a height contribute the unbounded borders at ±Inf.
func DetectLevels(walls []navgraph.Wall) Levels {
	seen := map[Border]struct{}{
		{Elevation: math.Inf(-1)}:            {},
		{Elevation: math.Inf(1), IsTop: true}: {},
	}
	for _, w := range walls {
		seen[Border{Elevation: w.Height.Bottom}] = struct{}{}
		seen[Border{Elevation: w.Height.Top, IsTop: true}] = struct{}{}
	}

	borders := make([]Border, 0, len(seen))
	for b := range seen {
		if math.IsNaN(b.Elevation) {
			continue
		}
		borders = append(borders, b)
	}
	// bottoms sort before tops at the same elevation so the set of passed
	// borders is always a prefix
	sort.Slice(borders, func(i, j int) bool {
		if borders[i].Elevation != borders[j].Elevation {
			return borders[i].Elevation < borders[j].Elevation
		}
		return !borders[i].IsTop && borders[j].IsTop
	})
	return Levels{borders: borders}
}

// Borders returns the sorted borders. The slice must not be modified.
func (l Levels) Borders() []Border {
	return l.borders
}

// Index returns the level of an elevation. Elevations with the same index
// are contained by exactly the same walls.
func (l Levels) Index(elevation float64) int {
	return sort.Search(len(l.borders), func(i int) bool {
		return !l.borders[i].passedBy(elevation)
	})
}
