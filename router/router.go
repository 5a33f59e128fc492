// Package router is the public pathfinding service: it picks the cached
// graph for a token and runs the search either in the background scheduler
// or synchronously.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gridless-router/geometry"
	"gridless-router/levels"
	"gridless-router/navgraph"
	"gridless-router/pathfinder"
	"gridless-router/scheduler"
)

var tracer = otel.Tracer("gridless.router")

var (
	// ErrMaxDistanceRequired is returned by CalculatePathBlocking without a
	// positive distance bound
	ErrMaxDistanceRequired = errors.New("router: blocking search requires a positive max distance")

	// ErrInvalidPoint is returned for non-finite coordinates
	ErrInvalidPoint = errors.New("router: invalid point")
)

// Options describes the moving token
type Options struct {
	// TokenSize in grid units, 1 when zero
	TokenSize float64
	Elevation float64
	// MaxDistance bounds the path cost, unbounded when zero
	MaxDistance float64
}

func (o Options) normalized() Options {
	if o.TokenSize == 0 {
		o.TokenSize = 1
	}
	if o.MaxDistance == 0 {
		o.MaxDistance = pathfinder.Unbounded
	}
	return o
}

// Router answers path queries against the current wall set
type Router struct {
	cache     *levels.Cache
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
}

// New creates a router. The caller runs the scheduler.
func New(cache *levels.Cache, sched *scheduler.Scheduler, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{cache: cache, scheduler: sched, logger: logger}
}

// CalculatePath queues a search and returns its job
func (r *Router) CalculatePath(ctx context.Context, from, to geometry.Point, opts Options) (*scheduler.Job, error) {
	opts = opts.normalized()
	ctx, span := tracer.Start(ctx, "router.CalculatePath", trace.WithAttributes(queryAttributes(from, to, opts)...))
	defer span.End()

	pf, err := r.pathfinder(ctx, from, to, opts)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	job := r.scheduler.Submit(pf)
	span.SetAttributes(attribute.String("job.id", job.ID.String()))
	return job, nil
}

// CalculatePathBlocking runs a bounded search to completion on the calling
// goroutine. A nil error with Outcome.Found false means no path exists
// within MaxDistance.
func (r *Router) CalculatePathBlocking(ctx context.Context, from, to geometry.Point, opts Options) (*scheduler.Outcome, error) {
	if !(opts.MaxDistance > 0) || math.IsInf(opts.MaxDistance, 1) {
		return nil, ErrMaxDistanceRequired
	}
	opts = opts.normalized()
	ctx, span := tracer.Start(ctx, "router.CalculatePathBlocking", trace.WithAttributes(queryAttributes(from, to, opts)...))
	defer span.End()

	start := time.Now()
	pf, err := r.pathfinder(ctx, from, to, opts)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	result, err := pf.Run(ctx, 0)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("blocking search: %w", err)
	}

	outcome := scheduler.NewOutcome(pf, result)
	span.SetAttributes(
		attribute.Bool("path.found", outcome.Found),
		attribute.Int("path.steps", pf.Steps()),
	)
	r.logger.Debug("blocking path calculated",
		slog.Bool("found", outcome.Found),
		slog.Float64("cost", outcome.Cost),
		slog.Int("steps", pf.Steps()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return outcome, nil
}

// SetWalls replaces the wall set. Cached graphs are dropped and queued
// searches restart.
func (r *Router) SetWalls(walls []navgraph.Wall) {
	r.cache.Reset(walls)
	r.scheduler.ResetAll()
	r.logger.Info("walls replaced", slog.Int("walls", len(walls)))
}

// Cancel drops a queued search
func (r *Router) Cancel(job *scheduler.Job) bool {
	return r.scheduler.Cancel(job.ID)
}

// Stats reports the level cache state
func (r *Router) Stats() levels.CacheStats {
	return r.cache.Stats()
}

// Pending returns the number of queued searches
func (r *Router) Pending() int {
	return r.scheduler.Pending()
}

func (r *Router) pathfinder(ctx context.Context, from, to geometry.Point, opts Options) (*pathfinder.Pathfinder, error) {
	for _, p := range [2]geometry.Point{from, to} {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPoint, p)
		}
	}
	graph, err := r.cache.GraphFor(ctx, opts.TokenSize, opts.Elevation)
	if err != nil {
		return nil, fmt.Errorf("graph for token: %w", err)
	}
	return pathfinder.New(graph, from, to, opts.MaxDistance), nil
}

func queryAttributes(from, to geometry.Point, opts Options) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Float64("path.from.x", from.X),
		attribute.Float64("path.from.y", from.Y),
		attribute.Float64("path.to.x", to.X),
		attribute.Float64("path.to.y", to.Y),
		attribute.Float64("token.size", opts.TokenSize),
		attribute.Float64("token.elevation", opts.Elevation),
	}
}
