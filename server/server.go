// Package server exposes the engine registry and the router over HTTP.
package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gridless-router/engine"
	"gridless-router/router"
	"gridless-router/scheduler"
)

// Options configures a Server
type Options struct {
	// HeightEnabled applies wall heights to scene updates
	HeightEnabled bool
	Logger        *slog.Logger
}

// Server holds the HTTP handlers
type Server struct {
	engine  *engine.Engine
	router  *router.Router
	options Options

	jobsMu sync.Mutex
	jobs   map[uuid.UUID]*scheduler.Job
}

// New creates a server
func New(eng *engine.Engine, rt *router.Router, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		engine:  eng,
		router:  rt,
		options: opts,
		jobs:    make(map[uuid.UUID]*scheduler.Job),
	}
}

// Handler builds the gin engine with every route registered
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.options.Logger))
	s.RegisterRoutes(r.Group("/"))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// RegisterRoutes adds the API routes to a group
func (s *Server) RegisterRoutes(rg *gin.RouterGroup) {
	graphs := rg.Group("/graphs")
	{
		graphs.POST("", s.HandleBuildGraph)
		graphs.GET("/:id", s.HandleGraphInfo)
		graphs.DELETE("/:id", s.HandleFreeGraph)
	}

	pathfinders := rg.Group("/pathfinders")
	{
		pathfinders.POST("", s.HandleBuildPathfinder)
		pathfinders.POST("/:id/reset", s.HandleResetPathfinder)
		pathfinders.POST("/:id/step", s.HandleStep)
		pathfinders.DELETE("/:id", s.HandleFreePathfinder)
	}

	rg.POST("/route", s.HandleRoute)

	jobs := rg.Group("/jobs")
	{
		jobs.POST("", s.HandleSubmitJob)
		jobs.GET("/:id", s.HandleGetJob)
		jobs.DELETE("/:id", s.HandleCancelJob)
	}

	rg.PUT("/scene", s.HandleSetScene)
	rg.GET("/health", s.HandleHealth)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}
