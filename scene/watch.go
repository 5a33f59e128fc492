package scene

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"gridless-router/engine"
)

// DefaultDebounce collapses bursts of editor writes into one reload
const DefaultDebounce = 200 * time.Millisecond

// Watch reloads the scene whenever its file, or a *.geojson file in its
// directory, changes, and passes the new records to onChange. Reload errors
// are logged and the previous scene stays in effect. Watch blocks until ctx
// ends.
func Watch(ctx context.Context, path string, debounce time.Duration, opts Options, onChange func([]engine.WallRecord)) error {
	logger := opts.logger()
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat scene: %w", err)
	}
	// watch the directory so atomic replace-by-rename is seen
	dir, match := filepath.Dir(path), func(name string) bool { return filepath.Clean(name) == filepath.Clean(path) }
	if info.IsDir() {
		dir, match = path, func(name string) bool { return filepath.Ext(name) == ".geojson" }
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating scene watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	logger.Info("watching scene", slog.String("path", path))

	timer := time.NewTimer(debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !match(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("scene watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			records, err := Load(path, opts)
			if err != nil {
				logger.Error("scene reload failed", slog.String("path", path), slog.String("error", err.Error()))
				continue
			}
			logger.Info("scene reloaded", slog.String("path", path), slog.Int("walls", len(records)))
			onChange(records)
		}
	}
}
