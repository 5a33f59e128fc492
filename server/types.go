package server

import (
	"gridless-router/engine"
	"gridless-router/geometry"
	"gridless-router/levels"
	"gridless-router/scheduler"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// BuildGraphRequest is the body of POST /graphs
type BuildGraphRequest struct {
	Walls          []engine.WallRecord `json:"walls" binding:"required"`
	AgentDiameter  float64             `json:"agentDiameter" binding:"gte=0"`
	AgentElevation float64             `json:"agentElevation"`
	EnableHeight   bool                `json:"enableHeight"`
}

// BuildGraphResponse is returned by POST /graphs
type BuildGraphResponse struct {
	ID    uint64 `json:"id"`
	Nodes int    `json:"nodes"`
	Walls int    `json:"walls"`
}

// BuildPathfinderRequest is the body of POST /pathfinders
type BuildPathfinderRequest struct {
	From  *geometry.Point `json:"from" binding:"required"`
	To    *geometry.Point `json:"to" binding:"required"`
	Graph uint64          `json:"graph" binding:"required"`
	// MaxDistance is unbounded when omitted
	MaxDistance *float64 `json:"maxDistance" binding:"omitempty,gt=0"`
}

// IDResponse carries a newly issued handle
type IDResponse struct {
	ID uint64 `json:"id"`
}

// RouteRequest is the body of POST /route and POST /jobs
type RouteRequest struct {
	From        *geometry.Point `json:"from" binding:"required"`
	To          *geometry.Point `json:"to" binding:"required"`
	TokenSize   float64         `json:"tokenSize" binding:"omitempty,gt=0"`
	Elevation   float64         `json:"elevation"`
	MaxDistance float64         `json:"maxDistance" binding:"gte=0"`
}

// JobResponse describes a background route job
type JobResponse struct {
	ID      string             `json:"id"`
	Status  string             `json:"status"`
	Outcome *scheduler.Outcome `json:"outcome,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// SceneRequest is the body of PUT /scene
type SceneRequest struct {
	Walls []engine.WallRecord `json:"walls" binding:"required"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status      string            `json:"status"`
	Graphs      int               `json:"graphs"`
	Pathfinders int               `json:"pathfinders"`
	PendingJobs int               `json:"pendingJobs"`
	LevelCache  levels.CacheStats `json:"levelCache"`
}
