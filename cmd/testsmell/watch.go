package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce groups the bursts of events editors emit for one save.
const watchDebounce = 100 * time.Millisecond

// watchLoop calls run once, then again after every change to one of
// files, until ctx is done. Failures of run are logged and do not stop
// the loop. Parent directories are watched so that files replaced by
// rename are still seen.
func watchLoop(ctx context.Context, files []string, run func() error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Close()

	targets := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", f, err)
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for d := range dirs {
		if err := w.Add(d); err != nil {
			return fmt.Errorf("watching %s: %w", d, err)
		}
	}

	if err := run(); err != nil {
		logger.Error("analysis failed", "err", err)
	}
	logger.Info("watching for changes", "files", files)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || !targets[abs] {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				logger.Debug("change detected", "file", ev.Name, "op", ev.Op)
				pending = time.After(watchDebounce)
			}

		case <-pending:
			pending = nil
			if err := run(); err != nil {
				logger.Error("analysis failed", "err", err)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "err", err)
		}
	}
}
