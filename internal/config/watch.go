package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/dj-oyu/pb-receiver/internal/channels"
	"github.com/dj-oyu/pb-receiver/internal/logger"
)

// Watch reloads path whenever it is written and hands the output toggles to fn. It
// watches the parent directory so editors that replace the file are followed. Watch
// blocks until ctx is done.
func Watch(ctx context.Context, path string, fn func(channels.Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			cfg, err := Load(abs)
			if err != nil {
				logger.Warn("Config", "Ignoring reload: %v", err)
				continue
			}
			logger.Info("Config", "Reloaded outputs: %+v", cfg.Outputs)
			fn(cfg.Outputs)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Config", "Watcher error: %v", err)
		}
	}
}
