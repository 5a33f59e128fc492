// Package scene reads wall layouts from GeoJSON.
//
// Every LineString edge becomes one wall, as does every edge of every
// polygon ring. Feature properties carry the wall attributes:
//
//	move    movement restriction code (default 20, blocks movement)
//	door    door kind code (default 0)
//	ds      door state code (default 0)
//	top     wall top elevation (default unbounded)
//	bottom  wall bottom elevation (default unbounded)
package scene

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"

	"gridless-router/engine"
	"gridless-router/navgraph"
)

// ErrBadProperty is returned when a feature property has the wrong type
var ErrBadProperty = errors.New("scene: bad feature property")

// Options controls scene decoding
type Options struct {
	Logger *slog.Logger
	// SimplifyTolerance drops polyline vertices closer than this to the
	// simplified line (Douglas-Peucker). Zero keeps every vertex.
	SimplifyTolerance float64
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Load reads a GeoJSON file, or every *.geojson file in a directory
func Load(path string, opts Options) ([]engine.WallRecord, error) {
	logger := opts.logger()
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat scene: %w", err)
	}
	if !info.IsDir() {
		return LoadFile(path, opts)
	}

	files, err := filepath.Glob(filepath.Join(path, "*.geojson"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var records []engine.WallRecord
	for _, file := range files {
		walls, err := LoadFile(file, opts)
		if err != nil {
			return nil, err
		}
		records = append(records, walls...)
	}
	logger.Info("scene directory loaded",
		slog.String("dir", path),
		slog.Int("files", len(files)),
		slog.Int("walls", len(records)),
	)
	return records, nil
}

// LoadFile reads one GeoJSON FeatureCollection
func LoadFile(path string, opts Options) ([]engine.WallRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	records, err := Parse(data, opts)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	opts.logger().Debug("scene file loaded", slog.String("file", path), slog.Int("walls", len(records)))
	return records, nil
}

// Parse decodes a FeatureCollection into wall records. Unsupported
// geometries are skipped with a warning.
func Parse(data []byte, opts Options) ([]engine.WallRecord, error) {
	logger := opts.logger()
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}

	var records []engine.WallRecord
	for i, feature := range fc.Features {
		if feature.Geometry == nil {
			continue
		}
		template, err := wallTemplate(feature.Properties)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}

		geom := feature.Geometry
		if opts.SimplifyTolerance > 0 {
			geom = simplify.DouglasPeucker(opts.SimplifyTolerance).Simplify(orb.Clone(geom))
		}

		var chains []orb.LineString
		switch g := geom.(type) {
		case orb.LineString:
			chains = append(chains, g)
		case orb.MultiLineString:
			chains = append(chains, g...)
		case orb.Ring:
			chains = append(chains, orb.LineString(g))
		case orb.Polygon:
			chains = appendRings(chains, g)
		case orb.MultiPolygon:
			for _, poly := range g {
				chains = appendRings(chains, poly)
			}
		default:
			logger.Warn("skipping unsupported scene geometry",
				slog.Int("feature", i),
				slog.String("type", geom.GeoJSONType()),
			)
			continue
		}

		for _, chain := range chains {
			for j := 1; j < len(chain); j++ {
				record := template
				record.C = [4]float64{chain[j-1][0], chain[j-1][1], chain[j][0], chain[j][1]}
				records = append(records, record)
			}
		}
	}
	return records, nil
}

func appendRings(chains []orb.LineString, poly orb.Polygon) []orb.LineString {
	for _, ring := range poly {
		if len(ring) > 1 && !ring.Closed() {
			ring = append(ring, ring[0])
		}
		chains = append(chains, orb.LineString(ring))
	}
	return chains
}

func wallTemplate(props geojson.Properties) (engine.WallRecord, error) {
	record := engine.WallRecord{Move: int(navgraph.MoveNormal)}
	var err error
	if record.Move, err = intProperty(props, "move", record.Move); err != nil {
		return record, err
	}
	if record.Door, err = intProperty(props, "door", 0); err != nil {
		return record, err
	}
	if record.DoorState, err = intProperty(props, "ds", 0); err != nil {
		return record, err
	}

	top, err := floatProperty(props, "top")
	if err != nil {
		return record, err
	}
	bottom, err := floatProperty(props, "bottom")
	if err != nil {
		return record, err
	}
	if top != nil || bottom != nil {
		record.Height = &engine.HeightRecord{Top: top, Bottom: bottom}
	}
	return record, nil
}

func intProperty(props geojson.Properties, key string, def int) (int, error) {
	v, ok := props[key]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) {
		return 0, fmt.Errorf("%w: %s=%v", ErrBadProperty, key, v)
	}
	return int(f), nil
}

func floatProperty(props geojson.Properties, key string) (*float64, error) {
	v, ok := props[key]
	if !ok || v == nil {
		return nil, nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil, fmt.Errorf("%w: %s=%v", ErrBadProperty, key, v)
	}
	return &f, nil
}
