package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"gridless-router/geometry"
	"gridless-router/navgraph"
	"gridless-router/pathfinder"
)

var (
	// ErrUnknownHandle is returned for a graph or pathfinder id that was
	// never issued or has been freed
	ErrUnknownHandle = errors.New("unknown handle")

	// ErrInvalidArgument is returned for malformed numeric arguments
	ErrInvalidArgument = errors.New("invalid argument")
)

// GraphID identifies a graph owned by an Engine
type GraphID uint64

// PathfinderID identifies a pathfinder owned by an Engine
type PathfinderID uint64

// StepResult is the outcome of one step as seen by the host
type StepResult struct {
	Status    string           `json:"status"`
	Cost      float64          `json:"cost,omitempty"`
	Waypoints []geometry.Point `json:"waypoints,omitempty"`
}

// GraphInfo summarizes a graph for the host
type GraphInfo struct {
	Nodes int            `json:"nodes"`
	Walls int            `json:"walls"`
	Stats navgraph.Stats `json:"stats"`
}

type pathfinderEntry struct {
	mu sync.Mutex
	pf *pathfinder.Pathfinder
}

// Engine owns graphs and pathfinders on behalf of a host and hands out
// integer handles to them.
//
// Thread Safety:
//
//	Engine is safe for concurrent use. Steps on one pathfinder are
//	serialized; distinct pathfinders step in parallel and share their
//	graph's edge cache.
type Engine struct {
	mu          sync.Mutex
	nextID      uint64
	graphs      map[GraphID]*navgraph.Graph
	pathfinders map[PathfinderID]*pathfinderEntry
	logger      *slog.Logger
	graphOpts   []navgraph.Option
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithGraphOptions passes options to every graph build
func WithGraphOptions(opts ...navgraph.Option) Option {
	return func(e *Engine) { e.graphOpts = append(e.graphOpts, opts...) }
}

// New creates an empty engine
func New(opts ...Option) *Engine {
	e := &Engine{
		graphs:      make(map[GraphID]*navgraph.Graph),
		pathfinders: make(map[PathfinderID]*pathfinderEntry),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BuildGraph converts host walls and builds a navigation graph for an agent
// of the given diameter and elevation.
func (e *Engine) BuildGraph(records []WallRecord, agentDiameter, agentElevation float64, enableHeight bool) (GraphID, error) {
	if math.IsNaN(agentDiameter) || math.IsInf(agentDiameter, 0) || agentDiameter < 0 {
		return 0, fmt.Errorf("%w: agent diameter %v", ErrInvalidArgument, agentDiameter)
	}
	if math.IsNaN(agentElevation) {
		return 0, fmt.Errorf("%w: agent elevation is NaN", ErrInvalidArgument)
	}
	walls, err := ConvertWalls(records, enableHeight)
	if err != nil {
		return 0, err
	}

	opts := append([]navgraph.Option{navgraph.WithLogger(e.logger)}, e.graphOpts...)
	graph := navgraph.Build(walls, agentDiameter, agentElevation, opts...)

	e.mu.Lock()
	e.nextID++
	id := GraphID(e.nextID)
	e.graphs[id] = graph
	e.mu.Unlock()

	e.logger.Info("graph created",
		slog.Uint64("graph_id", uint64(id)),
		slog.Int("walls", len(records)),
		slog.Int("nodes", len(graph.Nodes())),
	)
	return id, nil
}

// BuildPathfinder creates a pathfinder for one query against a graph. The
// pathfinder keeps the graph alive even if the graph handle is freed.
func (e *Engine) BuildPathfinder(from, to geometry.Point, graphID GraphID, maxDistance float64) (PathfinderID, error) {
	if math.IsNaN(maxDistance) {
		return 0, fmt.Errorf("%w: max distance is NaN", ErrInvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	graph, ok := e.graphs[graphID]
	if !ok {
		return 0, fmt.Errorf("graph %d: %w", graphID, ErrUnknownHandle)
	}
	e.nextID++
	id := PathfinderID(e.nextID)
	e.pathfinders[id] = &pathfinderEntry{pf: pathfinder.New(graph, from, to, maxDistance)}
	return id, nil
}

// ResetPathfinder reseeds a query on the same source, destination and graph
func (e *Engine) ResetPathfinder(id PathfinderID) error {
	entry, err := e.pathfinder(id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	entry.pf.Reset()
	entry.mu.Unlock()
	return nil
}

// Step advances a pathfinder by one expansion
func (e *Engine) Step(id PathfinderID) (StepResult, error) {
	entry, err := e.pathfinder(id)
	if err != nil {
		return StepResult{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	result := entry.pf.Step()
	out := StepResult{Status: result.Status.String()}
	if result.Status == pathfinder.Found {
		out.Cost = result.Node.Estimated
		out.Waypoints = entry.pf.Unroll(result.Node)
	}
	return out, nil
}

// GraphInfo reports node and wall counts and cache statistics
func (e *Engine) GraphInfo(id GraphID) (GraphInfo, error) {
	e.mu.Lock()
	graph, ok := e.graphs[id]
	e.mu.Unlock()
	if !ok {
		return GraphInfo{}, fmt.Errorf("graph %d: %w", id, ErrUnknownHandle)
	}
	return GraphInfo{
		Nodes: len(graph.Nodes()),
		Walls: len(graph.Walls()),
		Stats: graph.Stats(),
	}, nil
}

// FreeGraph drops the engine's reference to a graph
func (e *Engine) FreeGraph(id GraphID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.graphs[id]; !ok {
		return fmt.Errorf("graph %d: %w", id, ErrUnknownHandle)
	}
	delete(e.graphs, id)
	return nil
}

// FreePathfinder drops a pathfinder
func (e *Engine) FreePathfinder(id PathfinderID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.pathfinders[id]; !ok {
		return fmt.Errorf("pathfinder %d: %w", id, ErrUnknownHandle)
	}
	delete(e.pathfinders, id)
	return nil
}

// Counts returns the number of live graphs and pathfinders
func (e *Engine) Counts() (graphs, pathfinders int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.graphs), len(e.pathfinders)
}

func (e *Engine) pathfinder(id PathfinderID) (*pathfinderEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.pathfinders[id]
	if !ok {
		return nil, fmt.Errorf("pathfinder %d: %w", id, ErrUnknownHandle)
	}
	return entry, nil
}
