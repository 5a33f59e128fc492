package engine

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridless-router/geometry"
	"gridless-router/navgraph"
)

func ptr(v float64) *float64 { return &v }

func wall(x1, y1, x2, y2 float64) WallRecord {
	return WallRecord{C: [4]float64{x1, y1, x2, y2}, Move: int(navgraph.MoveNormal)}
}

func TestToWall(t *testing.T) {
	t.Run("rounds coordinates", func(t *testing.T) {
		w, err := WallRecord{C: [4]float64{0.4, -0.6, 9.5, 2.49}, Move: 20}.ToWall(false)
		require.NoError(t, err)
		assert.Equal(t, geometry.Point{X: 0, Y: -1}, w.P1)
		assert.Equal(t, geometry.Point{X: 10, Y: 2}, w.P2)
		assert.Equal(t, navgraph.MoveNormal, w.Move)
	})

	t.Run("maps enums", func(t *testing.T) {
		w, err := WallRecord{Move: 10, Door: 2, DoorState: 1}.ToWall(false)
		require.NoError(t, err)
		assert.Equal(t, navgraph.MoveLimited, w.Move)
		assert.Equal(t, navgraph.DoorSecret, w.Door)
		assert.Equal(t, navgraph.DoorOpen, w.DoorState)
	})

	t.Run("height ignored when disabled", func(t *testing.T) {
		r := wall(0, 0, 1, 0)
		r.Height = &HeightRecord{Top: ptr(10), Bottom: ptr(5)}
		w, err := r.ToWall(false)
		require.NoError(t, err)
		assert.Equal(t, navgraph.FullHeight(), w.Height)
	})

	t.Run("height used when enabled", func(t *testing.T) {
		r := wall(0, 0, 1, 0)
		r.Height = &HeightRecord{Top: ptr(10), Bottom: ptr(5)}
		w, err := r.ToWall(true)
		require.NoError(t, err)
		assert.Equal(t, navgraph.WallHeight{Top: 10, Bottom: 5}, w.Height)
	})

	t.Run("missing bound stays unbounded", func(t *testing.T) {
		r := wall(0, 0, 1, 0)
		r.Height = &HeightRecord{Top: ptr(10)}
		w, err := r.ToWall(true)
		require.NoError(t, err)
		assert.Equal(t, 10.0, w.Height.Top)
		assert.True(t, math.IsInf(w.Height.Bottom, -1))
	})

	invalid := []struct {
		name   string
		record WallRecord
	}{
		{"unknown move", WallRecord{Move: 5}},
		{"unknown door", WallRecord{Move: 20, Door: 3}},
		{"unknown door state", WallRecord{Move: 20, DoorState: -1}},
		{"nan coordinate", WallRecord{C: [4]float64{math.NaN(), 0, 1, 1}, Move: 20}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.record.ToWall(false)
			assert.ErrorIs(t, err, ErrInvalidWall)
		})
	}
}

func TestConvertWallsReportsIndex(t *testing.T) {
	_, err := ConvertWalls([]WallRecord{wall(0, 0, 1, 0), {Move: 7}}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidWall)
	assert.Contains(t, err.Error(), "wall 1")
}

func stepUntilDone(t *testing.T, e *Engine, id PathfinderID) StepResult {
	t.Helper()
	for i := 0; i < 10000; i++ {
		res, err := e.Step(id)
		require.NoError(t, err)
		if res.Status != "unfinished" {
			return res
		}
	}
	t.Fatal("pathfinder did not terminate")
	return StepResult{}
}

func TestEngineRoundTrip(t *testing.T) {
	e := New()
	gid, err := e.BuildGraph([]WallRecord{wall(0, 0, 0, 10), wall(0, 0, 10, 0)}, 2, 0, false)
	require.NoError(t, err)

	info, err := e.GraphInfo(gid)
	require.NoError(t, err)
	assert.Equal(t, 9, info.Nodes)
	assert.Equal(t, 11, info.Walls)

	pid, err := e.BuildPathfinder(geometry.Point{X: 5, Y: -5}, geometry.Point{X: 5, Y: -1}, gid, math.Inf(1))
	require.NoError(t, err)

	res := stepUntilDone(t, e, pid)
	assert.Equal(t, "path", res.Status)
	assert.InDelta(t, 4.0, res.Cost, 1e-3)
	assert.Equal(t, []geometry.Point{{X: 5, Y: -5}, {X: 5, Y: -1}}, res.Waypoints)

	again, err := e.Step(pid)
	require.NoError(t, err)
	assert.Equal(t, res, again)

	require.NoError(t, e.ResetPathfinder(pid))
	assert.Equal(t, res, stepUntilDone(t, e, pid))
}

func TestEngineNoPath(t *testing.T) {
	e := New()
	records := []WallRecord{wall(0, 0, 10, 0), wall(10, 0, 10, 10), wall(10, 10, 0, 10), wall(0, 10, 0, 0)}
	gid, err := e.BuildGraph(records, 1, 0, false)
	require.NoError(t, err)
	pid, err := e.BuildPathfinder(geometry.Point{X: -5, Y: -5}, geometry.Point{X: 5, Y: 5}, gid, math.Inf(1))
	require.NoError(t, err)

	res := stepUntilDone(t, e, pid)
	assert.Equal(t, "no_path", res.Status)
	assert.Empty(t, res.Waypoints)
	assert.Zero(t, res.Cost)
}

func TestEngineHandles(t *testing.T) {
	e := New()

	_, err := e.BuildPathfinder(geometry.Point{}, geometry.Point{}, 42, 1)
	assert.ErrorIs(t, err, ErrUnknownHandle)
	_, err = e.Step(7)
	assert.ErrorIs(t, err, ErrUnknownHandle)
	assert.ErrorIs(t, e.ResetPathfinder(7), ErrUnknownHandle)
	assert.ErrorIs(t, e.FreeGraph(7), ErrUnknownHandle)
	assert.ErrorIs(t, e.FreePathfinder(7), ErrUnknownHandle)

	gid, err := e.BuildGraph([]WallRecord{wall(0, 0, 10, 0)}, 1, 0, false)
	require.NoError(t, err)
	pid, err := e.BuildPathfinder(geometry.Point{X: 5, Y: -5}, geometry.Point{X: 5, Y: 5}, gid, math.Inf(1))
	require.NoError(t, err)
	assert.NotEqual(t, uint64(gid), uint64(pid))

	t.Run("pathfinder outlives freed graph", func(t *testing.T) {
		require.NoError(t, e.FreeGraph(gid))
		assert.ErrorIs(t, e.FreeGraph(gid), ErrUnknownHandle)
		res := stepUntilDone(t, e, pid)
		assert.Equal(t, "path", res.Status)
	})

	t.Run("freed pathfinder is gone", func(t *testing.T) {
		require.NoError(t, e.FreePathfinder(pid))
		_, err := e.Step(pid)
		assert.ErrorIs(t, err, ErrUnknownHandle)
		graphs, pathfinders := e.Counts()
		assert.Zero(t, graphs)
		assert.Zero(t, pathfinders)
	})
}

func TestEngineRejectsBadArguments(t *testing.T) {
	e := New()
	_, err := e.BuildGraph(nil, -1, 0, false)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = e.BuildGraph(nil, math.NaN(), 0, false)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = e.BuildGraph([]WallRecord{{Move: 3}}, 1, 0, false)
	assert.ErrorIs(t, err, ErrInvalidWall)

	gid, err := e.BuildGraph(nil, 1, 0, false)
	require.NoError(t, err)
	_, err = e.BuildPathfinder(geometry.Point{}, geometry.Point{}, gid, math.NaN())
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestEngineConcurrentPathfinders(t *testing.T) {
	e := New()
	gid, err := e.BuildGraph([]WallRecord{wall(0, -10, 0, 10), wall(-10, 0, 10, 0)}, 2, 0, false)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]StepResult, 8)
	for i := range results {
		pid, err := e.BuildPathfinder(geometry.Point{X: 5, Y: 5}, geometry.Point{X: -5, Y: -5}, gid, math.Inf(1))
		require.NoError(t, err)
		wg.Add(1)
		go func(i int, pid PathfinderID) {
			defer wg.Done()
			for {
				res, err := e.Step(pid)
				if err != nil || res.Status != "unfinished" {
					results[i] = res
					return
				}
			}
		}(i, pid)
	}
	wg.Wait()

	for _, res := range results {
		assert.Equal(t, "path", res.Status)
		assert.InDelta(t, results[0].Cost, res.Cost, 1e-9)
	}
}
