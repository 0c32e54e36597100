package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docship/internal/config"
	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
	"git.home.luguber.info/inful/docship/internal/logfields"
)

// ReloadTarget receives validated configurations from the watcher.
type ReloadTarget interface {
	ReloadConfig(ctx context.Context, cfg *config.Config) error
}

// ConfigWatcher reloads the configuration when the file changes on disk.
// Events are debounced because editors typically emit several writes per
// save; a reload that fails to load or validate leaves the running config
// untouched.
type ConfigWatcher struct {
	configPath   string
	target       ReloadTarget
	watcher      *fsnotify.Watcher
	stopChan     chan struct{}
	reloadChan   chan struct{}
	debounceTime time.Duration
}

// NewConfigWatcher watches configPath and pushes reloads into target.
func NewConfigWatcher(configPath string, target ReloadTarget) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryDaemon, "create file watcher").Build()
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		watcher.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "resolve config path").
			WithContext("path", configPath).
			Build()
	}

	return &ConfigWatcher{
		configPath:   absPath,
		target:       target,
		watcher:      watcher,
		stopChan:     make(chan struct{}),
		reloadChan:   make(chan struct{}, 1),
		debounceTime: 2 * time.Second,
	}, nil
}

// Start begins monitoring. The directory is watched rather than the file so
// rename-based atomic saves keep working.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	configDir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(configDir); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryDaemon, "watch config directory").
			WithContext("dir", configDir).
			Build()
	}

	slog.Info("watching config file", logfields.Path(cw.configPath))
	go cw.watchLoop(ctx)
	go cw.reloadLoop(ctx)
	return nil
}

// Stop ends monitoring.
func (cw *ConfigWatcher) Stop() {
	slog.Info("stopping config watcher")
	close(cw.stopChan)
	if err := cw.watcher.Close(); err != nil {
		slog.Error("error closing file watcher", logfields.Error(err))
	}
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	configFile := filepath.Base(cw.configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}
			switch {
			case event.Op.Has(fsnotify.Write), event.Op.Has(fsnotify.Create), event.Op.Has(fsnotify.Rename):
				slog.Debug("config file changed", logfields.File(event.Name), slog.String("op", event.Op.String()))
				cw.triggerReload()
			case event.Op.Has(fsnotify.Remove):
				slog.Warn("config file removed", logfields.File(event.Name))
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", logfields.Error(err))
		}
	}
}

func (cw *ConfigWatcher) reloadLoop(ctx context.Context) {
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-cw.stopChan:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-cw.reloadChan:
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(cw.debounceTime, func() {
				if err := cw.performReload(ctx); err != nil {
					slog.Error("config reload failed, keeping previous config", logfields.Error(err))
				}
			})
		}
	}
}

func (cw *ConfigWatcher) triggerReload() {
	select {
	case cw.reloadChan <- struct{}{}:
	default:
		// reload already pending
	}
}

func (cw *ConfigWatcher) performReload(ctx context.Context) error {
	slog.Info("reloading configuration", logfields.Path(cw.configPath))

	newConfig, err := config.Load(cw.configPath)
	if err != nil {
		return err
	}
	if err := cw.target.ReloadConfig(ctx, newConfig); err != nil {
		return err
	}

	slog.Info("configuration reloaded", "projects", len(newConfig.Projects))
	return nil
}
