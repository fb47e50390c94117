package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/JoaoAMarinho/FEUP-COMP/pkg/logger"
)

// settle absorbs the burst of events editors produce for one save
const settle = 100 * time.Millisecond

// watch compiles once, then again after every write to the input, until ctx
// is done. Compilation errors are reported and watching continues.
func watch(ctx context.Context, opts *options) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// editors often replace the file, so watch its directory
	abs, err := filepath.Abs(opts.input)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	rebuild := func() {
		if err := build(ctx, opts); err != nil {
			logger.Error("Compilation failed", "file", opts.input, "error", err)
		}
	}
	rebuild()
	logger.Info("Watching for changes", "file", abs)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !touches(ev, abs) {
				continue
			}
			logger.Debug("Input changed", "file", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(settle)
			} else {
				timer.Reset(settle)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			rebuild()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", opts.input, err)
		}
	}
}

// touches reports whether an event may have changed the contents of path
func touches(ev fsnotify.Event, path string) bool {
	return ev.Name == path && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
