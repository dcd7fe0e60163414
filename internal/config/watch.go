// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce coalesces the burst of events an editor save produces.
const DefaultWatchDebounce = 150 * time.Millisecond

// Watch watches dir and calls fn with a freshly loaded config whenever one
// of the config files changes. The directory is watched rather than the
// files so that editors which replace a file on save are seen. A failed
// load is reported through fn with a nil config. Watch blocks until ctx is
// done.
func Watch(ctx context.Context, dir string, fn func(*Config, error)) error {
	return watch(ctx, dir, DefaultWatchDebounce, fn)
}

func watch(ctx context.Context, dir string, debounce time.Duration, fn func(*Config, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&relevant == 0 || !isConfigFile(event.Name) {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fn(nil, fmt.Errorf("config watcher: %w", err))

		case <-timer.C:
			cfg, err := LoadDir(dir)
			fn(cfg, err)
		}
	}
}
