package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"gridless-router/engine"
	"gridless-router/levels"
	"gridless-router/pathfinder"
	"gridless-router/router"
	"gridless-router/scheduler"
)

// HandleBuildGraph handles POST /graphs
func (s *Server) HandleBuildGraph(c *gin.Context) {
	var req BuildGraphRequest
	if !s.bind(c, &req) {
		return
	}
	id, err := s.engine.BuildGraph(req.Walls, req.AgentDiameter, req.AgentElevation, req.EnableHeight)
	if err != nil {
		s.fail(c, err)
		return
	}
	info, err := s.engine.GraphInfo(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, BuildGraphResponse{ID: uint64(id), Nodes: info.Nodes, Walls: info.Walls})
}

// HandleGraphInfo handles GET /graphs/:id
func (s *Server) HandleGraphInfo(c *gin.Context) {
	id, ok := s.handleParam(c)
	if !ok {
		return
	}
	info, err := s.engine.GraphInfo(engine.GraphID(id))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// HandleFreeGraph handles DELETE /graphs/:id
func (s *Server) HandleFreeGraph(c *gin.Context) {
	id, ok := s.handleParam(c)
	if !ok {
		return
	}
	if err := s.engine.FreeGraph(engine.GraphID(id)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleBuildPathfinder handles POST /pathfinders
func (s *Server) HandleBuildPathfinder(c *gin.Context) {
	var req BuildPathfinderRequest
	if !s.bind(c, &req) {
		return
	}
	maxDistance := pathfinder.Unbounded
	if req.MaxDistance != nil {
		maxDistance = *req.MaxDistance
	}
	id, err := s.engine.BuildPathfinder(*req.From, *req.To, engine.GraphID(req.Graph), maxDistance)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, IDResponse{ID: uint64(id)})
}

// HandleResetPathfinder handles POST /pathfinders/:id/reset
func (s *Server) HandleResetPathfinder(c *gin.Context) {
	id, ok := s.handleParam(c)
	if !ok {
		return
	}
	if err := s.engine.ResetPathfinder(engine.PathfinderID(id)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleStep handles POST /pathfinders/:id/step
func (s *Server) HandleStep(c *gin.Context) {
	id, ok := s.handleParam(c)
	if !ok {
		return
	}
	result, err := s.engine.Step(engine.PathfinderID(id))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleFreePathfinder handles DELETE /pathfinders/:id
func (s *Server) HandleFreePathfinder(c *gin.Context) {
	id, ok := s.handleParam(c)
	if !ok {
		return
	}
	if err := s.engine.FreePathfinder(engine.PathfinderID(id)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleRoute handles POST /route, a bounded search over the loaded scene
func (s *Server) HandleRoute(c *gin.Context) {
	var req RouteRequest
	if !s.bind(c, &req) {
		return
	}
	outcome, err := s.router.CalculatePathBlocking(c.Request.Context(), *req.From, *req.To, req.options())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// HandleSubmitJob handles POST /jobs
func (s *Server) HandleSubmitJob(c *gin.Context) {
	var req RouteRequest
	if !s.bind(c, &req) {
		return
	}
	job, err := s.router.CalculatePath(c.Request.Context(), *req.From, *req.To, req.options())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.jobsMu.Lock()
	s.jobs[job.ID] = job
	s.jobsMu.Unlock()
	c.JSON(http.StatusAccepted, JobResponse{ID: job.ID.String(), Status: "queued"})
}

// HandleGetJob handles GET /jobs/:id. A finished job is reported once and
// then forgotten.
func (s *Server) HandleGetJob(c *gin.Context) {
	job, ok := s.job(c)
	if !ok {
		return
	}
	outcome, done, err := job.Result()
	resp := JobResponse{ID: job.ID.String(), Status: "queued"}
	if done {
		s.forget(job)
		resp.Status = "done"
		resp.Outcome = outcome
		if err != nil {
			resp.Status = "failed"
			resp.Error = err.Error()
		}
	}
	c.JSON(http.StatusOK, resp)
}

// HandleCancelJob handles DELETE /jobs/:id
func (s *Server) HandleCancelJob(c *gin.Context) {
	job, ok := s.job(c)
	if !ok {
		return
	}
	s.forget(job)
	if !s.router.Cancel(job) {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "job already finished", Code: "JOB_FINISHED"})
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleSetScene handles PUT /scene, replacing the router's walls
func (s *Server) HandleSetScene(c *gin.Context) {
	var req SceneRequest
	if !s.bind(c, &req) {
		return
	}
	walls, err := engine.ConvertWalls(req.Walls, s.options.HeightEnabled)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.router.SetWalls(walls)
	c.Status(http.StatusNoContent)
}

// HandleHealth handles GET /health
func (s *Server) HandleHealth(c *gin.Context) {
	graphs, pathfinders := s.engine.Counts()
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "healthy",
		Graphs:      graphs,
		Pathfinders: pathfinders,
		PendingJobs: s.router.Pending(),
		LevelCache:  s.router.Stats(),
	})
}

func (r RouteRequest) options() router.Options {
	return router.Options{TokenSize: r.TokenSize, Elevation: r.Elevation, MaxDistance: r.MaxDistance}
}

func (s *Server) bind(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	s.options.Logger.Warn("invalid request body", "path", c.FullPath(), "error", err)

	msg := "invalid request body"
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		msg = "invalid request: " + strings.Join(fields, ", ")
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "INVALID_REQUEST"})
	return false
}

func (s *Server) handleParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed id", Code: "INVALID_ID"})
		return 0, false
	}
	return id, true
}

func (s *Server) job(c *gin.Context) (*scheduler.Job, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed job id", Code: "INVALID_ID"})
		return nil, false
	}
	s.jobsMu.Lock()
	job, ok := s.jobs[id]
	s.jobsMu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown job", Code: "UNKNOWN_JOB"})
		return nil, false
	}
	return job, true
}

func (s *Server) forget(job *scheduler.Job) {
	s.jobsMu.Lock()
	delete(s.jobs, job.ID)
	s.jobsMu.Unlock()
}

func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownHandle):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "UNKNOWN_HANDLE"})
	case errors.Is(err, engine.ErrInvalidWall),
		errors.Is(err, engine.ErrInvalidArgument),
		errors.Is(err, router.ErrMaxDistanceRequired),
		errors.Is(err, router.ErrInvalidPoint),
		errors.Is(err, levels.ErrInvalidTokenSize):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_ARGUMENT"})
	default:
		s.options.Logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "INTERNAL"})
	}
}
