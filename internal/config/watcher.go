package config

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 500 * time.Millisecond

// ReloadFunc applies a freshly loaded configuration
type ReloadFunc func(*Config) error

// Watcher reloads the configuration when the file changes or on SIGHUP
type Watcher struct {
	configPath string
	logger     zerolog.Logger
	watcher    *fsnotify.Watcher
	apply      []ReloadFunc
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewWatcher creates a config watcher that hands every valid reload to apply, in order
func NewWatcher(configPath string, logger zerolog.Logger, apply ...ReloadFunc) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory so atomic renames by editors and config managers are seen
	if err := fsWatcher.Add(filepath.Dir(configPath)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		configPath: filepath.Clean(configPath),
		logger:     logger.With().Str("component", "config-watcher").Logger(),
		watcher:    fsWatcher,
		apply:      apply,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start starts watching for config changes
func (w *Watcher) Start() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)

	go func() {
		defer w.watcher.Close()
		defer signal.Stop(sigChan)

		var debounceTimer *time.Timer

		for {
			select {
			case <-w.ctx.Done():
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				w.logger.Info().Msg("Config watcher stopped")
				return

			case sig := <-sigChan:
				w.logger.Info().Str("signal", sig.String()).Msg("Received signal, reloading configuration")
				w.reload()

			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.configPath {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}

				w.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Config file changed")

				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(reloadDebounce, w.reload)

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error().Err(err).Msg("Config watcher error")
			}
		}
	}()

	w.logger.Info().Str("path", w.configPath).Msg("Config watcher started")
}

// Stop stops the watcher
func (w *Watcher) Stop() {
	w.cancel()
}

// reload loads the file and applies it, keeping the current config on any failure
func (w *Watcher) reload() {
	newCfg, err := Load(w.configPath)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to load new configuration - keeping current config")
		return
	}

	for _, apply := range w.apply {
		if err := apply(newCfg); err != nil {
			w.logger.Error().Err(err).Msg("Failed to apply new configuration - keeping current config")
			return
		}
	}

	w.logger.Info().Str("mode", newCfg.Inference.Mode).Msg("Configuration reloaded successfully")
}
