package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch invalidates the cache whenever a workflow file in the user or
// project directory changes outside the Store. Directories that do not
// exist yet are created so they can be watched. Watching stops when ctx
// is done.
func (s *Store) Watch(ctx context.Context) error {
	var dirs []string
	for _, dir := range []string{s.cfg.UserDir, s.cfg.ProjectDir, s.cfg.BuiltinDir} {
		if dir != "" {
			dirs = append(dirs, dir)
		}
	}
	if len(dirs) == 0 {
		return errors.New("no workflow directories to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	for _, dir := range dirs {
		if dir != s.cfg.BuiltinDir {
			if err := os.MkdirAll(dir, 0755); err != nil {
				watcher.Close()
				return fmt.Errorf("create %s: %w", dir, err)
			}
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	go s.watchLoop(ctx, watcher)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".json" {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.logger.Debugf("workflow file %s changed (%s), invalidating cache", event.Name, event.Op)
				s.cache.invalidate()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn(err, "workflow watcher error")
		}
	}
}
