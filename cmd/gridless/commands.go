package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gridless-router/config"
	"gridless-router/engine"
	"gridless-router/geometry"
	"gridless-router/levels"
	"gridless-router/router"
	"gridless-router/scene"
	"gridless-router/scheduler"
	"gridless-router/server"
)

var (
	configPath string

	routeScene       string
	routeFrom        string
	routeTo          string
	routeSize        float64
	routeElevation   float64
	routeMaxDistance float64
	routeGridSize    float64
	routeHeights     bool
	routeSimplify    float64

	rootCmd = &cobra.Command{
		Use:          "gridless",
		Short:        "Collision-aware shortest paths for tokens among line-segment walls",
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP pathfinding service",
		RunE:  runServe,
	}

	routeCmd = &cobra.Command{
		Use:   "route",
		Short: "Compute one path over a scene file and print it",
		RunE:  runRoute,
	}
)

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to the YAML configuration file")

	routeCmd.Flags().StringVar(&routeScene, "scene", "", "GeoJSON scene file or directory")
	routeCmd.Flags().StringVar(&routeFrom, "from", "", "Source point as x,y")
	routeCmd.Flags().StringVar(&routeTo, "to", "", "Destination point as x,y")
	routeCmd.Flags().Float64Var(&routeSize, "size", 1, "Token size in grid units")
	routeCmd.Flags().Float64Var(&routeElevation, "elevation", 0, "Token elevation")
	routeCmd.Flags().Float64Var(&routeMaxDistance, "max-distance", 0, "Upper bound on path cost (required)")
	routeCmd.Flags().Float64Var(&routeGridSize, "grid-size", 1, "Scene units per token size unit")
	routeCmd.Flags().BoolVar(&routeHeights, "heights", false, "Apply wall heights")
	routeCmd.Flags().Float64Var(&routeSimplify, "simplify", 0, "Douglas-Peucker tolerance for scene polylines")
	_ = routeCmd.MarkFlagRequired("scene")
	_ = routeCmd.MarkFlagRequired("from")
	_ = routeCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(serveCmd, routeCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sceneOpts := scene.Options{Logger: logger, SimplifyTolerance: cfg.SceneSimplifyTolerance}
	var records []engine.WallRecord
	if cfg.ScenePath != "" {
		if records, err = scene.Load(cfg.ScenePath, sceneOpts); err != nil {
			return err
		}
	}
	walls, err := engine.ConvertWalls(records, cfg.HeightEnabled)
	if err != nil {
		return fmt.Errorf("scene: %w", err)
	}

	cache := levels.NewCache(walls,
		levels.WithGridSize(cfg.GridSize),
		levels.WithTokenSizeRatio(cfg.TokenSizeRatio),
		levels.WithLogger(logger),
	)
	sched := scheduler.New(
		scheduler.WithStepsPerIteration(cfg.StepsPerIteration),
		scheduler.WithSliceBudget(cfg.SliceBudget),
		scheduler.WithSliceInterval(cfg.SliceInterval),
		scheduler.WithLogger(logger),
	)
	rt := router.New(cache, sched, logger)
	eng := engine.New(engine.WithLogger(logger))
	srv := server.New(eng, rt, server.Options{HeightEnabled: cfg.HeightEnabled, Logger: logger})

	go func() {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler stopped", slog.String("error", err.Error()))
		}
	}()

	if cfg.ScenePath != "" && cfg.WatchScene {
		go func() {
			err := scene.Watch(ctx, cfg.ScenePath, scene.DefaultDebounce, sceneOpts, func(records []engine.WallRecord) {
				walls, err := engine.ConvertWalls(records, cfg.HeightEnabled)
				if err != nil {
					logger.Error("scene rejected", slog.String("error", err.Error()))
					return
				}
				rt.SetWalls(walls)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scene watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.Listen), slog.Int("walls", len(walls)))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return httpServer.Shutdown(shutdownCtx)
}

func runRoute(cmd *cobra.Command, args []string) error {
	from, err := parsePoint(routeFrom)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	to, err := parsePoint(routeTo)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	records, err := scene.Load(routeScene, scene.Options{Logger: logger, SimplifyTolerance: routeSimplify})
	if err != nil {
		return err
	}
	walls, err := engine.ConvertWalls(records, routeHeights)
	if err != nil {
		return fmt.Errorf("scene: %w", err)
	}

	cache := levels.NewCache(walls, levels.WithGridSize(routeGridSize), levels.WithLogger(logger))
	rt := router.New(cache, scheduler.New(scheduler.WithLogger(logger)), logger)
	outcome, err := rt.CalculatePathBlocking(cmd.Context(), from, to, router.Options{
		TokenSize:   routeSize,
		Elevation:   routeElevation,
		MaxDistance: routeMaxDistance,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !outcome.Found {
		fmt.Fprintln(out, "no path")
		return nil
	}
	fmt.Fprintf(out, "cost %.4f\n", outcome.Cost)
	for _, p := range outcome.Waypoints {
		fmt.Fprintf(out, "%g,%g\n", p.X, p.Y)
	}
	return nil
}

func parsePoint(s string) (geometry.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geometry.Point{}, fmt.Errorf("expected x,y, got %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geometry.Point{}, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geometry.Point{}, fmt.Errorf("y: %w", err)
	}
	return geometry.Point{X: x, Y: y}, nil
}
