package slaconfig

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch monitors the store's config file and reloads it each time the file
// is written. It runs until ctx is cancelled. A failed reload keeps the
// previous snapshot active; the store already logs the failure.
func Watch(ctx context.Context, store *Store, logger *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(store.Path()); err != nil {
		return err
	}

	logger.Info("watching sla config for changes", zap.String("path", store.Path()))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			switch {
			case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
				_ = store.Reload()
				// Re-add the file in case an atomic save replaced the inode.
				_ = watcher.Add(store.Path())

			case event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove):
				// The watched inode is gone (vim-style atomic save renames a
				// temp file over the target). Re-watch the path and pick up
				// whatever lives there now.
				_ = watcher.Add(store.Path())
				_ = store.Reload()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("sla config watcher error", zap.Error(err))
		}
	}
}
