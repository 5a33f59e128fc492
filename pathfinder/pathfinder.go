package pathfinder

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gridless-router/geometry"
	"gridless-router/navgraph"
)

// nodePenalty is added per traversed edge so that, between routes of equal
// length, the one with fewer waypoints wins.
const nodePenalty = 0.00001

// Unbounded is a cutoff that never stops the search
var Unbounded = math.Inf(1)

// ErrStepLimit is returned by Run when the step budget runs out first
var ErrStepLimit = errors.New("pathfinder: step limit reached")

// Status is the outcome of a single step
type Status int

const (
	Unfinished Status = iota
	Found
	NoPath
)

func (s Status) String() string {
	switch s {
	case Unfinished:
		return "unfinished"
	case Found:
		return "path"
	case NoPath:
		return "no_path"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Result is returned by Step. Node is set only when Status is Found.
type Result struct {
	Status Status
	Node   DiscoveredNode
}

// Done reports whether the result is terminal
func (r Result) Done() bool {
	return r.Status != Unfinished
}

// Pathfinder runs an incremental A* search for one query against a shared
// graph. It is not safe for concurrent use; distinct pathfinders may share a
// graph across goroutines.
type Pathfinder struct {
	graph       *navgraph.Graph
	from, to    geometry.Point
	maxDistance float64

	edges      map[geometry.Point][]navgraph.Edge
	open       *OpenList
	closed     map[geometry.Point]struct{}
	discovered map[geometry.Point]DiscoveredNode

	terminal *Result
	steps    int
}

// New creates a pathfinder for a query and seeds it. A maxDistance of
// +Inf disables the cost cutoff.
func New(graph *navgraph.Graph, from, to geometry.Point, maxDistance float64) *Pathfinder {
	p := &Pathfinder{
		graph:       graph,
		from:        from,
		to:          to,
		maxDistance: maxDistance,
		edges:       make(map[geometry.Point][]navgraph.Edge),
		open:        NewOpenList(),
		closed:      make(map[geometry.Point]struct{}),
		discovered:  make(map[geometry.Point]DiscoveredNode),
	}
	p.Reset()
	return p
}

// From returns the query source
func (p *Pathfinder) From() geometry.Point { return p.from }

// To returns the query destination
func (p *Pathfinder) To() geometry.Point { return p.to }

// MaxDistance returns the cost cutoff
func (p *Pathfinder) MaxDistance() float64 { return p.maxDistance }

// Graph returns the graph the search runs on
func (p *Pathfinder) Graph() *navgraph.Graph { return p.graph }

// Steps returns the number of expansions since the last reset
func (p *Pathfinder) Steps() int { return p.steps }

// Reset clears all query state and reseeds the frontier with the source.
// The graph's shared edge cache is kept.
func (p *Pathfinder) Reset() {
	clear(p.edges)
	p.open.Clear()
	clear(p.closed)
	clear(p.discovered)
	p.terminal = nil
	p.steps = 0

	p.open.Push(DiscoveredNode{
		Point:     p.from,
		Cost:      0,
		Estimated: p.heuristic(p.from),
	})
}

// Step advances the search by one expansion. Once a terminal result has
// been returned, further calls return it again without touching any state.
func (p *Pathfinder) Step() Result {
	if p.terminal != nil {
		return *p.terminal
	}

	current, ok := p.open.Pop()
	if !ok {
		return p.finish(Result{Status: NoPath})
	}
	if current.Cost > p.maxDistance {
		return p.finish(Result{Status: NoPath})
	}
	if current.Point == p.to {
		return p.finish(Result{Status: Found, Node: current})
	}

	p.steps++
	p.closed[current.Point] = struct{}{}
	p.discovered[current.Point] = current

	previous := current.Point
	for _, edge := range p.edgesFor(current.Point) {
		if _, done := p.closed[edge.Target]; done {
			continue
		}
		cost := current.Cost + edge.Cost + nodePenalty
		p.open.Push(DiscoveredNode{
			Point:     edge.Target,
			Cost:      cost,
			Estimated: cost + p.heuristic(edge.Target),
			Previous:  &previous,
		})
	}
	return Result{Status: Unfinished}
}

// Run steps until a terminal result, the step budget or the context ends.
// A maxSteps of zero or less means no budget.
func (p *Pathfinder) Run(ctx context.Context, maxSteps int) (Result, error) {
	for i := 0; maxSteps <= 0 || i < maxSteps; i++ {
		if err := ctx.Err(); err != nil {
			return Result{Status: Unfinished}, err
		}
		if result := p.Step(); result.Done() {
			return result, nil
		}
	}
	return Result{Status: Unfinished}, ErrStepLimit
}

// Unroll follows back-pointers from a terminal node and returns the
// waypoints in source to destination order.
func (p *Pathfinder) Unroll(node DiscoveredNode) []geometry.Point {
	path := []geometry.Point{node.Point}
	current := node
	for current.Previous != nil {
		prev, ok := p.discovered[*current.Previous]
		if !ok {
			panic(fmt.Sprintf("pathfinder: back-pointer %v not discovered", *current.Previous))
		}
		current = prev
		path = append(path, current.Point)
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func (p *Pathfinder) finish(result Result) Result {
	p.terminal = &result
	return result
}

// heuristic is the straight-line distance to the destination
func (p *Pathfinder) heuristic(point geometry.Point) float64 {
	return point.Distance(p.to)
}

// edgesFor resolves outgoing edges of a point: query cache first, then the
// graph's shared cache, then a fresh visibility sweep. The source's sweep is
// kept out of the shared cache since every query brings a new source and the
// graph would otherwise grow without bound. The destination changes per
// query, so its edge is appended here whenever it is visible.
func (p *Pathfinder) edgesFor(point geometry.Point) []navgraph.Edge {
	if edges, ok := p.edges[point]; ok {
		return edges
	}

	shared, ok := p.graph.CachedEdges(point)
	if !ok {
		shared = p.graph.ComputeEdges(point)
		if point != p.from {
			shared = p.graph.StoreEdges(point, shared)
		}
	}

	edges := make([]navgraph.Edge, len(shared), len(shared)+1)
	copy(edges, shared)
	if p.graph.Visible(point, p.to) {
		edges = append(edges, navgraph.Edge{Target: p.to, Cost: point.Distance(p.to)})
	}

	p.edges[point] = edges
	return edges
}
