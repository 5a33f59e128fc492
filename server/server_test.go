package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridless-router/engine"
	"gridless-router/geometry"
	"gridless-router/levels"
	"gridless-router/navgraph"
	"gridless-router/router"
	"gridless-router/scheduler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	handler   http.Handler
	scheduler *scheduler.Scheduler
	engine    *engine.Engine
}

func setup(t *testing.T, walls []navgraph.Wall) fixture {
	t.Helper()
	eng := engine.New()
	sched := scheduler.New(scheduler.WithSliceInterval(0))
	rt := router.New(levels.NewCache(walls), sched, nil)
	srv := New(eng, rt, Options{})
	return fixture{handler: srv.Handler(), scheduler: sched, engine: eng}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func record(x1, y1, x2, y2 float64) engine.WallRecord {
	return engine.WallRecord{C: [4]float64{x1, y1, x2, y2}, Move: 20}
}

func TestGraphAndPathfinderLifecycle(t *testing.T) {
	f := setup(t, nil)

	w := do(t, f.handler, http.MethodPost, "/graphs", BuildGraphRequest{
		Walls:         []engine.WallRecord{record(0, 0, 0, 10), record(0, 0, 10, 0)},
		AgentDiameter: 2,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	graph := decode[BuildGraphResponse](t, w)
	assert.Equal(t, 9, graph.Nodes)

	w = do(t, f.handler, http.MethodPost, "/pathfinders", BuildPathfinderRequest{
		From:  &geometry.Point{X: 5, Y: -5},
		To:    &geometry.Point{X: 5, Y: -1},
		Graph: graph.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	pf := decode[IDResponse](t, w)

	stepPath := fmt.Sprintf("/pathfinders/%d/step", pf.ID)
	var result engine.StepResult
	for i := 0; i < 100; i++ {
		w = do(t, f.handler, http.MethodPost, stepPath, nil)
		require.Equal(t, http.StatusOK, w.Code)
		result = decode[engine.StepResult](t, w)
		if result.Status != "unfinished" {
			break
		}
	}
	assert.Equal(t, "path", result.Status)
	assert.InDelta(t, 4.0, result.Cost, 1e-3)
	assert.Len(t, result.Waypoints, 2)

	w = do(t, f.handler, http.MethodPost, fmt.Sprintf("/pathfinders/%d/reset", pf.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, f.handler, http.MethodGet, fmt.Sprintf("/graphs/%d", graph.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[engine.GraphInfo](t, w)
	assert.Positive(t, info.Stats.VisibilityTests)

	assert.Equal(t, http.StatusNoContent, do(t, f.handler, http.MethodDelete, fmt.Sprintf("/pathfinders/%d", pf.ID), nil).Code)
	assert.Equal(t, http.StatusNoContent, do(t, f.handler, http.MethodDelete, fmt.Sprintf("/graphs/%d", graph.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, f.handler, http.MethodPost, stepPath, nil).Code)
}

func TestRequestValidation(t *testing.T) {
	f := setup(t, nil)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"graph without walls", http.MethodPost, "/graphs", map[string]any{"agentDiameter": 1}, http.StatusBadRequest},
		{"negative diameter", http.MethodPost, "/graphs", map[string]any{"walls": []any{}, "agentDiameter": -1}, http.StatusBadRequest},
		{"unknown wall enum", http.MethodPost, "/graphs", BuildGraphRequest{Walls: []engine.WallRecord{{Move: 3}}}, http.StatusBadRequest},
		{"pathfinder without from", http.MethodPost, "/pathfinders", map[string]any{"to": map[string]float64{"x": 1, "y": 1}, "graph": 1}, http.StatusBadRequest},
		{"pathfinder unknown graph", http.MethodPost, "/pathfinders", BuildPathfinderRequest{From: &geometry.Point{}, To: &geometry.Point{}, Graph: 99}, http.StatusNotFound},
		{"malformed id", http.MethodPost, "/pathfinders/abc/step", nil, http.StatusBadRequest},
		{"unknown pathfinder", http.MethodDelete, "/pathfinders/12", nil, http.StatusNotFound},
		{"route without max distance", http.MethodPost, "/route", RouteRequest{From: &geometry.Point{}, To: &geometry.Point{X: 1}}, http.StatusBadRequest},
		{"route negative token", http.MethodPost, "/route", map[string]any{"from": map[string]float64{}, "to": map[string]float64{}, "tokenSize": -2, "maxDistance": 5}, http.StatusBadRequest},
		{"malformed job id", http.MethodGet, "/jobs/not-a-uuid", nil, http.StatusBadRequest},
		{"unknown job", http.MethodGet, "/jobs/0b6c3c52-8c1e-4f43-9d9f-4c8a1f0b7e11", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, f.handler, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			resp := decode[ErrorResponse](t, w)
			assert.NotEmpty(t, resp.Error)
			assert.NotEmpty(t, resp.Code)
		})
	}
}

func TestValidationMessageNamesField(t *testing.T) {
	f := setup(t, nil)
	w := do(t, f.handler, http.MethodPost, "/graphs", map[string]any{"walls": []any{}, "agentDiameter": -1})
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Contains(t, resp.Error, "AgentDiameter")
	assert.Equal(t, "INVALID_REQUEST", resp.Code)
}

func TestRouteBlocking(t *testing.T) {
	f := setup(t, []navgraph.Wall{{
		P1: geometry.Point{X: 0, Y: -10}, P2: geometry.Point{X: 0, Y: 10},
		Move: navgraph.MoveNormal, Height: navgraph.FullHeight(),
	}})

	w := do(t, f.handler, http.MethodPost, "/route", RouteRequest{
		From: &geometry.Point{X: -5}, To: &geometry.Point{X: 5}, MaxDistance: 100,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode[scheduler.Outcome](t, w)
	assert.True(t, out.Found)
	assert.Greater(t, len(out.Waypoints), 2)

	w = do(t, f.handler, http.MethodPost, "/route", RouteRequest{
		From: &geometry.Point{X: -5}, To: &geometry.Point{X: 5}, MaxDistance: 5,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[scheduler.Outcome](t, w).Found)
}

func TestJobs(t *testing.T) {
	f := setup(t, nil)

	w := do(t, f.handler, http.MethodPost, "/jobs", RouteRequest{From: &geometry.Point{}, To: &geometry.Point{X: 3, Y: 4}})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	job := decode[JobResponse](t, w)
	assert.Equal(t, "queued", job.Status)

	w = do(t, f.handler, http.MethodGet, "/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "queued", decode[JobResponse](t, w).Status)

	f.scheduler.RunSlice()

	w = do(t, f.handler, http.MethodGet, "/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	done := decode[JobResponse](t, w)
	assert.Equal(t, "done", done.Status)
	require.NotNil(t, done.Outcome)
	assert.InDelta(t, 5.0, done.Outcome.Cost, 1e-3)

	// reported once
	assert.Equal(t, http.StatusNotFound, do(t, f.handler, http.MethodGet, "/jobs/"+job.ID, nil).Code)

	t.Run("cancel", func(t *testing.T) {
		w := do(t, f.handler, http.MethodPost, "/jobs", RouteRequest{From: &geometry.Point{}, To: &geometry.Point{X: 1}})
		require.Equal(t, http.StatusAccepted, w.Code)
		id := decode[JobResponse](t, w).ID
		assert.Equal(t, http.StatusNoContent, do(t, f.handler, http.MethodDelete, "/jobs/"+id, nil).Code)
		assert.Zero(t, f.scheduler.Pending())
	})
}

func TestSetScene(t *testing.T) {
	f := setup(t, nil)
	route := RouteRequest{From: &geometry.Point{X: -5}, To: &geometry.Point{X: 5}, MaxDistance: 100}

	w := do(t, f.handler, http.MethodPost, "/route", route)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[scheduler.Outcome](t, w).Waypoints, 2)

	w = do(t, f.handler, http.MethodPut, "/scene", SceneRequest{Walls: []engine.WallRecord{record(0, -10, 0, 10)}})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = do(t, f.handler, http.MethodPost, "/route", route)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Greater(t, len(decode[scheduler.Outcome](t, w).Waypoints), 2)

	w = do(t, f.handler, http.MethodPut, "/scene", SceneRequest{Walls: []engine.WallRecord{{Door: 9}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := setup(t, nil)
	_, err := f.engine.BuildGraph(nil, 1, 0, false)
	require.NoError(t, err)

	w := do(t, f.handler, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.Graphs)
	assert.Zero(t, health.PendingJobs)

	w = do(t, f.handler, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gridless_graph_builds_total")
}
