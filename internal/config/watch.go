package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// debounceInterval coalesces editor write bursts into one reload.
const debounceInterval = 250 * time.Millisecond

// Watch reloads the config file on change and hands each valid result to
// onReload. Invalid or unreadable content keeps the last good config; the
// watcher only stops when ctx is cancelled.
func Watch(ctx context.Context, path string, defaults Config, onReload func(Config)) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("config watch path is required")
	}
	if onReload == nil {
		return fmt.Errorf("config watch callback is required")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files on save and
	// the inode-level watch would silently die.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}

	var timer *time.Timer
	reload := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceInterval, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", "err", err)
		case <-reload:
			cfg, err := Load(path, defaults)
			if err != nil {
				log.Warn("config reload skipped", "path", path, "err", err)
				continue
			}
			log.Info("config reloaded", "path", path)
			onReload(cfg)
		}
	}
}
