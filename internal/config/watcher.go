package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDebounce is how long after the last write the reload fires.
// Editors often emit several events per save.
const reloadDebounce = 500 * time.Millisecond

// Reloader watches the config file and invokes a callback with the
// freshly loaded configuration and its hash on every change.
type Reloader struct {
	watcher *fsnotify.Watcher
	path    string
	log     *zap.Logger
	onLoad  func(cfg *Config, hash string)
}

// NewReloader creates a file watcher for the config path. The callback
// runs on every successful reload; a reload that fails to parse keeps
// the previous configuration in force.
func NewReloader(path string, logger *zap.Logger, onLoad func(cfg *Config, hash string)) (*Reloader, error) {
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reloader{watcher: watcher, path: path, log: logger, onLoad: onLoad}, nil
}

// Run watches for changes and reloads. Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(reloadDebounce, r.reload)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.log.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (r *Reloader) reload() {
	cfg, hash, err := LoadConfigWithHash(r.path)
	if err != nil {
		r.log.Error("config hot-reload failed, keeping previous configuration",
			zap.String("path", r.path), zap.Error(err))
		return
	}
	r.log.Info("config reloaded", zap.String("path", r.path), zap.String("hash", hash))
	r.onLoad(cfg, hash)
}
