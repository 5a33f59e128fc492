package navgraph

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gridless-router/geometry"
)

// stubRatio is how far a corner fence reaches toward its waypoint
const stubRatio = 0.99

// Edge represents a collision-free connection to another point
type Edge struct {
	Target geometry.Point
	Cost   float64 // Euclidean distance
}

// Stats exposes graph instrumentation counters
type Stats struct {
	VisibilityTests uint64 `json:"visibilityTests"`
	CacheHits       uint64 `json:"cacheHits"`
	CacheMisses     uint64 `json:"cacheMisses"`
	CachedNodes     int    `json:"cachedNodes"`
}

// Graph is a navigation graph for one (walls, agent size, elevation) tuple.
//
// Nodes and walls are immutable after Build. The adjacency cache is shared
// by every pathfinder working on the graph, only ever grows, and is safe for
// concurrent use.
type Graph struct {
	nodes     []geometry.Point
	walls     []geometry.LineSegment
	index     *spatialIndex
	radius    float64
	elevation float64

	mu    sync.RWMutex
	edges map[geometry.Point][]Edge

	visibilityTests atomic.Uint64
	cacheHits       atomic.Uint64
	cacheMisses     atomic.Uint64
}

type buildOptions struct {
	logger       *slog.Logger
	spatialIndex bool
}

// Option configures Build
type Option func(*buildOptions)

// WithLogger sets the logger used while building
func WithLogger(logger *slog.Logger) Option {
	return func(o *buildOptions) { o.logger = logger }
}

// WithSpatialIndex toggles the R-tree over blocking segments. Without it
// every visibility test scans all segments.
func WithSpatialIndex(enabled bool) Option {
	return func(o *buildOptions) { o.spatialIndex = enabled }
}

// Build constructs a navigation graph from raw walls for an agent of the
// given diameter standing at the given elevation.
func Build(walls []Wall, agentDiameter, agentElevation float64, opts ...Option) *Graph {
	options := buildOptions{logger: slog.Default(), spatialIndex: true}
	for _, opt := range opts {
		opt(&options)
	}

	start := time.Now()
	radius := agentDiameter / 2

	// Endpoints keep first-seen order so node order does not depend on map iteration
	var corners []geometry.Point
	angles := make(map[geometry.Point][]float64)
	segments := make([]geometry.LineSegment, 0, len(walls))
	skipped := 0

	for _, wall := range walls {
		if !wall.Blocks(agentElevation) {
			skipped++
			continue
		}
		p1Angle := wall.P1.AngleTo(wall.P2)
		p2Angle := geometry.NormalizeAngle(p1Angle + math.Pi)
		for _, end := range [2]struct {
			point geometry.Point
			angle float64
		}{{wall.P1, p1Angle}, {wall.P2, p2Angle}} {
			if _, seen := angles[end.point]; !seen {
				corners = append(corners, end.point)
			}
			angles[end.point] = append(angles[end.point], end.angle)
		}
		segments = append(segments, wall.Segment())
	}

	var nodes []geometry.Point
	for _, corner := range corners {
		list := angles[corner]
		if len(list) == 0 {
			panic(fmt.Sprintf("navgraph: corner %v recorded without wall angles", corner))
		}
		sort.Float64s(list)

		for i := 1; i < len(list); i++ {
			if list[i-1] == list[i] {
				continue
			}
			nodes, segments = addCornerNodes(nodes, segments, corner, list[i-1], list[i], radius)
		}
		nodes, segments = addCornerNodes(nodes, segments, corner, list[len(list)-1], list[0]+2*math.Pi, radius)
	}

	g := &Graph{
		nodes:     nodes,
		walls:     segments,
		radius:    radius,
		elevation: agentElevation,
		edges:     make(map[geometry.Point][]Edge),
	}
	if options.spatialIndex {
		g.index = newSpatialIndex(segments)
	}

	elapsed := time.Since(start)
	graphBuilds.Inc()
	graphBuildDuration.Observe(elapsed.Seconds())
	options.logger.Debug("navigation graph built",
		slog.Int("walls_in", len(walls)),
		slog.Int("walls_skipped", skipped),
		slog.Int("corners", len(corners)),
		slog.Int("nodes", len(nodes)),
		slog.Int("blocking_segments", len(segments)),
		slog.Float64("radius", radius),
		slog.Duration("elapsed", elapsed),
	)

	return g
}

// addCornerNodes emits clearance waypoints for the angular gap between two
// wall directions at a corner. Gaps of at most π are interior corners the
// agent cannot use and produce nothing.
func addCornerNodes(nodes []geometry.Point, segments []geometry.LineSegment, corner geometry.Point, angle1, angle2, radius float64) ([]geometry.Point, []geometry.LineSegment) {
	gap := angle2 - angle1
	if gap <= math.Pi {
		return nodes, segments
	}
	for _, angle := range [3]float64{
		angle1 + gap/2,
		angle1 + math.Pi/2,
		angle2 - math.Pi/2,
	} {
		nodes = append(nodes, corner.Offset(angle, radius))
		segments = append(segments, geometry.LineSegment{
			P1: corner,
			P2: corner.Offset(angle, radius*stubRatio),
		})
	}
	return nodes, segments
}

// Nodes returns the candidate waypoints. The slice must not be modified.
func (g *Graph) Nodes() []geometry.Point {
	return g.nodes
}

// Walls returns the blocking segments, fence stubs included. The slice must
// not be modified.
func (g *Graph) Walls() []geometry.LineSegment {
	return g.walls
}

// Radius returns the agent clearance radius the graph was built for
func (g *Graph) Radius() float64 {
	return g.radius
}

// Elevation returns the agent elevation the graph was built for
func (g *Graph) Elevation() float64 {
	return g.elevation
}

// Visible reports whether the straight segment between a and b collides
// with no blocking segment.
func (g *Graph) Visible(a, b geometry.Point) bool {
	g.visibilityTests.Add(1)
	visibilityTests.Inc()

	line := geometry.LineSegment{P1: a, P2: b}
	box := line.BoundingBox()

	candidates := g.walls
	if g.index != nil {
		candidates = g.index.query(box)
	}
	for _, wall := range candidates {
		if !geometry.BoxesOverlap(box, wall.BoundingBox()) {
			continue
		}
		if line.Intersects(wall) {
			return false
		}
	}
	return true
}

// ComputeEdges tests visibility from p to every node of the graph
func (g *Graph) ComputeEdges(p geometry.Point) []Edge {
	edges := make([]Edge, 0)
	for _, node := range g.nodes {
		if g.Visible(p, node) {
			edges = append(edges, Edge{Target: node, Cost: p.Distance(node)})
		}
	}
	return edges
}

// CachedEdges looks up the shared adjacency cache. The returned slice is
// shared and must not be modified.
func (g *Graph) CachedEdges(p geometry.Point) ([]Edge, bool) {
	g.mu.RLock()
	edges, ok := g.edges[p]
	g.mu.RUnlock()

	if ok {
		g.cacheHits.Add(1)
		edgeCacheLookups.WithLabelValues("hit").Inc()
	} else {
		g.cacheMisses.Add(1)
		edgeCacheLookups.WithLabelValues("miss").Inc()
	}
	return edges, ok
}

// StoreEdges records edges for p unless another caller stored them first.
// It returns whichever list ends up cached.
func (g *Graph) StoreEdges(p geometry.Point, edges []Edge) []Edge {
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.edges[p]; ok {
		return existing
	}
	g.edges[p] = edges
	return edges
}

// Stats returns a snapshot of the instrumentation counters
func (g *Graph) Stats() Stats {
	g.mu.RLock()
	cached := len(g.edges)
	g.mu.RUnlock()

	return Stats{
		VisibilityTests: g.visibilityTests.Load(),
		CacheHits:       g.cacheHits.Load(),
		CacheMisses:     g.cacheMisses.Load(),
		CachedNodes:     cached,
	}
}
