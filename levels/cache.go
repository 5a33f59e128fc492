package levels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"gridless-router/navgraph"
)

// ErrInvalidTokenSize is returned for non-positive or non-finite token sizes
var ErrInvalidTokenSize = errors.New("levels: invalid token size")

// DefaultTokenSizeRatio shrinks the agent slightly so tokens fit through
// gaps exactly their own size
const DefaultTokenSizeRatio = 0.9

// CacheOptions configures a Cache
type CacheOptions struct {
	GridSize       float64
	TokenSizeRatio float64
	Logger         *slog.Logger
	GraphOptions   []navgraph.Option
}

// DefaultCacheOptions returns options for a one-unit grid
func DefaultCacheOptions() CacheOptions {
	return CacheOptions{
		GridSize:       1,
		TokenSizeRatio: DefaultTokenSizeRatio,
		Logger:         slog.Default(),
	}
}

// CacheOption mutates CacheOptions
type CacheOption func(*CacheOptions)

// WithGridSize sets the scene units per token size unit
func WithGridSize(size float64) CacheOption {
	return func(o *CacheOptions) { o.GridSize = size }
}

// WithTokenSizeRatio sets the agent diameter as a fraction of the token size
func WithTokenSizeRatio(ratio float64) CacheOption {
	return func(o *CacheOptions) { o.TokenSizeRatio = ratio }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) CacheOption {
	return func(o *CacheOptions) { o.Logger = logger }
}

// WithGraphOptions passes options to every graph build
func WithGraphOptions(opts ...navgraph.Option) CacheOption {
	return func(o *CacheOptions) { o.GraphOptions = append(o.GraphOptions, opts...) }
}

type cacheKey struct {
	level     int
	tokenSize float64
}

// CacheStats reports cache activity
type CacheStats struct {
	Graphs int   `json:"graphs"`
	Levels int   `json:"levels"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Builds int64 `json:"builds"`
}

// Cache holds one navigation graph per (level, token size) for the current
// wall set.
//
// Thread Safety:
//
//	Cache is safe for concurrent use. Concurrent requests for the same key
//	share one build. A build that finishes after Reset is returned to its
//	callers but not cached.
type Cache struct {
	mu         sync.RWMutex
	walls      []navgraph.Wall
	levels     Levels
	graphs     map[cacheKey]*navgraph.Graph
	generation uint64
	flight     singleflight.Group
	options    CacheOptions

	hits   int64
	misses int64
	builds int64
}

// NewCache creates a cache over the given walls
func NewCache(walls []navgraph.Wall, opts ...CacheOption) *Cache {
	options := DefaultCacheOptions()
	for _, opt := range opts {
		opt(&options)
	}
	c := &Cache{options: options}
	c.Reset(walls)
	return c
}

// GraphFor returns the graph for a token of the given size at the given
// elevation, building it on first use.
func (c *Cache) GraphFor(ctx context.Context, tokenSize, elevation float64) (*navgraph.Graph, error) {
	if math.IsNaN(tokenSize) || math.IsInf(tokenSize, 0) || tokenSize <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTokenSize, tokenSize)
	}

	c.mu.RLock()
	key := cacheKey{level: c.levels.Index(elevation), tokenSize: tokenSize}
	graph, ok := c.graphs[key]
	walls := c.walls
	generation := c.generation
	c.mu.RUnlock()

	if ok {
		atomic.AddInt64(&c.hits, 1)
		cacheLookups.WithLabelValues("hit").Inc()
		return graph, nil
	}
	atomic.AddInt64(&c.misses, 1)
	cacheLookups.WithLabelValues("miss").Inc()

	flightKey := fmt.Sprintf("%d/%d/%g", generation, key.level, key.tokenSize)
	ch := c.flight.DoChan(flightKey, func() (interface{}, error) {
		return c.build(key, walls, generation, tokenSize, elevation), nil
	})

	select {
	case res := <-ch:
		return res.Val.(*navgraph.Graph), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) build(key cacheKey, walls []navgraph.Wall, generation uint64, tokenSize, elevation float64) *navgraph.Graph {
	start := time.Now()
	diameter := tokenSize * c.options.GridSize * c.options.TokenSizeRatio
	opts := append([]navgraph.Option{navgraph.WithLogger(c.options.Logger)}, c.options.GraphOptions...)
	graph := navgraph.Build(walls, diameter, elevation, opts...)
	atomic.AddInt64(&c.builds, 1)

	c.mu.Lock()
	stored := c.generation == generation
	if stored {
		if existing, ok := c.graphs[key]; ok {
			graph = existing
		} else {
			c.graphs[key] = graph
			cachedGraphs.Set(float64(len(c.graphs)))
		}
	}
	c.mu.Unlock()

	c.options.Logger.Info("level graph built",
		slog.Int("level", key.level),
		slog.Float64("token_size", tokenSize),
		slog.Float64("diameter", diameter),
		slog.Int("nodes", len(graph.Nodes())),
		slog.Bool("cached", stored),
		slog.Duration("elapsed", time.Since(start)),
	)
	return graph
}

// Reset replaces the wall set, dropping every cached graph
func (c *Cache) Reset(walls []navgraph.Wall) {
	walls = append([]navgraph.Wall(nil), walls...)
	levels := DetectLevels(walls)

	c.mu.Lock()
	c.walls = walls
	c.levels = levels
	c.graphs = make(map[cacheKey]*navgraph.Graph)
	c.generation++
	c.mu.Unlock()

	cacheResets.Inc()
	cachedGraphs.Set(0)
	c.options.Logger.Debug("level cache reset",
		slog.Int("walls", len(walls)),
		slog.Int("borders", len(levels.Borders())),
	)
}

// Walls returns the current wall set
func (c *Cache) Walls() []navgraph.Wall {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.walls
}

// Levels returns the current level borders
func (c *Cache) Levels() Levels {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.levels
}

// Stats returns a snapshot of cache activity
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	graphs := len(c.graphs)
	levels := len(c.levels.Borders())
	c.mu.RUnlock()
	return CacheStats{
		Graphs: graphs,
		Levels: levels,
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
		Builds: atomic.LoadInt64(&c.builds),
	}
}
