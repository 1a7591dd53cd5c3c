package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the catalog at path whenever it is written or replaced and
// passes each valid reload to fn. Invalid reloads are logged and skipped.
//
// The parent directory is watched rather than the file so that editors
// which save by rename are noticed. Watching stops when ctx is done.
func Watch(ctx context.Context, path string, logger *slog.Logger, fn func(*Catalog)) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve catalog path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create catalog watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch catalog: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				c, err := Load(abs)
				if err != nil {
					logger.Warn("ignoring pattern catalog change", "path", abs, "error", err)
					continue
				}
				logger.Info("pattern catalog reloaded", "path", abs, "patterns", len(c.Patterns))
				fn(c)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("pattern catalog watcher error", "error", err)
			}
		}
	}()
	return nil
}
