package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridless-router/geometry"
)

func TestParsePoint(t *testing.T) {
	tests := []struct {
		in      string
		want    geometry.Point
		wantErr bool
	}{
		{"1,2", geometry.Point{X: 1, Y: 2}, false},
		{" -3.5 , 4 ", geometry.Point{X: -3.5, Y: 4}, false},
		{"1", geometry.Point{}, true},
		{"1,2,3", geometry.Point{}, true},
		{"a,2", geometry.Point{}, true},
		{"1,b", geometry.Point{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePoint(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRouteCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{
	  "type": "FeatureCollection",
	  "features": [{
	    "type": "Feature", "properties": {},
	    "geometry": {"type": "LineString", "coordinates": [[0, -10], [0, 10]]}
	  }]
	}`), 0o644))

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&out)
		rootCmd.SetArgs(append([]string{"route", "--scene", path}, args...))
		err := rootCmd.Execute()
		return out.String(), err
	}

	t.Run("prints waypoints", func(t *testing.T) {
		out, err := run("--from", "-5,0", "--to", "5,0", "--max-distance", "100")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.GreaterOrEqual(t, len(lines), 4)
		assert.True(t, strings.HasPrefix(lines[0], "cost "))
		assert.Equal(t, "-5,0", lines[1])
		assert.Equal(t, "5,0", lines[len(lines)-1])
	})

	t.Run("reports no path", func(t *testing.T) {
		out, err := run("--from", "-5,0", "--to", "5,0", "--max-distance", "3")
		require.NoError(t, err)
		assert.Contains(t, out, "no path")
	})

	t.Run("requires max distance", func(t *testing.T) {
		_, err := run("--from", "-5,0", "--to", "5,0", "--max-distance", "0")
		assert.Error(t, err)
	})
}
