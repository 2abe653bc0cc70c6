// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/gfx"
)

// ConfigWatcher reloads the [present] section of a configuration file when
// the file changes. Everything else in the file is read once at activation
// and ignored here.
type ConfigWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	apply   func(gfx.PresentConfig)
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// WatchConfig watches path and calls apply with the new present settings
// after every write. Invalid files are logged and skipped. Pass
// Loop.SetPresentConfig to hot-reload a running loop.
//
// The directory is watched rather than the file, so editors that replace
// the file by renaming keep working.
func WatchConfig(path string, apply func(gfx.PresentConfig)) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("present: watch config: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("present: watch config: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("present: watch config: %w", err)
	}
	cw := &ConfigWatcher{watcher: w, path: abs, apply: apply, done: make(chan struct{})}
	cw.wg.Add(1)
	go cw.watch()
	return cw, nil
}

func (cw *ConfigWatcher) watch() {
	defer cw.wg.Done()
	for {
		select {
		case <-cw.done:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				cw.reload()
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			gfx.Logger().Warn("present: config watcher", "err", err)
		}
	}
}

func (cw *ConfigWatcher) reload() {
	cfg, err := gfx.LoadConfig(cw.path)
	if err != nil {
		// Editors often write in several steps; the next event retries.
		gfx.Logger().Debug("present: config reload skipped", "path", cw.path, "err", err)
		return
	}
	gfx.Logger().Info("present: config reloaded", "path", cw.path)
	cw.apply(cfg.Present)
}

// Close stops watching.
func (cw *ConfigWatcher) Close() error {
	var err error
	cw.once.Do(func() {
		close(cw.done)
		err = cw.watcher.Close()
		cw.wg.Wait()
	})
	return err
}
