package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the configuration file on write/create/rename events
// and publishes the result through a Store, generalizing the teacher's
// license file watcher (internal/license/watcher.go) to the main
// configuration file.
type Watcher struct {
	path  string
	store *Store
	fsw   *fsnotify.Watcher
}

// NewWatcher creates an fsnotify watch on path's containing directory
// (watching the directory, not the file, survives editors that replace
// the file via rename-into-place rather than in-place write).
func NewWatcher(path string, store *Store) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: new watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	return &Watcher{path: path, store: store, fsw: fsw}, nil
}

// Run blocks, reloading the store whenever path is modified, until ctx is
// canceled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	target := filepath.Clean(w.path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				continue // a transient partial write is not fatal; next event retries
			}
			w.store.Set(cfg)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
