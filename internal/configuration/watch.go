package configuration

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/mwallis/sidekick/internal/debug"
)

// Watch re-parses the configuration file whenever it changes and hands the
// fresh config to fn. The in-memory view is replaced wholesale, never merged
// field by field. Watch returns once the watcher is installed; it stops when
// the context is canceled.
func Watch(ctx context.Context, path string, fn func(*Config)) error {
	path, err := ExpandPath(path)
	if err != nil {
		return errors.Wrap(err, "expanding path")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating watcher")
	}
	// Watch the directory: editors replace files rather than write in place.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return errors.Wrap(err, "watching config directory")
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
				if event.Name != path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				config, err := Parse(path)
				if err != nil {
					debug.GetLogger().Error("reloading configuration", "error", err)
					continue
				}
				fn(config)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				debug.GetLogger().Error("watching configuration", "error", err)
			}
		}
	}()
	return nil
}
