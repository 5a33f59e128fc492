// Package config loads the service configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration
type Config struct {
	// Listen is the HTTP listen address
	Listen string `yaml:"listen"`

	// ScenePath is a GeoJSON file or a directory of them
	ScenePath  string `yaml:"scene_path"`
	WatchScene bool   `yaml:"watch_scene"`

	// SceneSimplifyTolerance simplifies scene polylines on load, 0 disables
	SceneSimplifyTolerance float64 `yaml:"scene_simplify_tolerance"`

	// GridSize is the number of scene units per token size unit
	GridSize       float64 `yaml:"grid_size"`
	TokenSizeRatio float64 `yaml:"token_size_ratio"`
	HeightEnabled  bool    `yaml:"height_enabled"`

	StepsPerIteration int           `yaml:"steps_per_iteration"`
	SliceBudget       time.Duration `yaml:"slice_budget"`
	SliceInterval     time.Duration `yaml:"slice_interval"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Listen:            ":8080",
		WatchScene:        true,
		GridSize:          1,
		TokenSizeRatio:    0.9,
		StepsPerIteration: 20,
		SliceBudget:       50 * time.Millisecond,
		SliceInterval:     time.Second / 60,
		LogLevel:          "info",
	}
}

// Load merges defaults, the YAML file at path (if given and present) and
// GRIDLESS_* environment variables, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("load config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	fromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func fromEnv(cfg *Config) {
	if v := os.Getenv("GRIDLESS_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("GRIDLESS_SCENE"); v != "" {
		cfg.ScenePath = v
	}
	if v := os.Getenv("GRIDLESS_WATCH_SCENE"); v != "" {
		cfg.WatchScene = v == "true" || v == "1"
	}
	if v := os.Getenv("GRIDLESS_GRID_SIZE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.GridSize = f
		}
	}
	if v := os.Getenv("GRIDLESS_HEIGHT_ENABLED"); v != "" {
		cfg.HeightEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("GRIDLESS_SLICE_BUDGET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SliceBudget = d
		}
	}
	if v := os.Getenv("GRIDLESS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen must be set")
	}
	if c.SceneSimplifyTolerance < 0 {
		return fmt.Errorf("scene_simplify_tolerance must be >= 0")
	}
	if !(c.GridSize > 0) {
		return fmt.Errorf("grid_size must be > 0")
	}
	if !(c.TokenSizeRatio > 0) || c.TokenSizeRatio > 1 {
		return fmt.Errorf("token_size_ratio must be in (0, 1]")
	}
	if c.StepsPerIteration < 1 {
		return fmt.Errorf("steps_per_iteration must be >= 1")
	}
	if c.SliceBudget <= 0 {
		return fmt.Errorf("slice_budget must be > 0")
	}
	if c.SliceInterval < 0 {
		return fmt.Errorf("slice_interval must be >= 0")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
