package engine

import (
	"path/filepath"

	"github.com/spaghettifunk/novus/engine/assets"
	"github.com/spaghettifunk/novus/engine/core"
	"github.com/spaghettifunk/novus/engine/platform"
)

// NewWindow picks the window the configuration asks for.
func NewWindow(cfg *core.Config, logger *core.Logger) platform.Window {
	if cfg.Application.Headless {
		return platform.NewHeadless()
	}
	return platform.New(logger)
}

// watchConfig registers the config file with the asset watcher so edits
// reach the running engine.
func (e *Engine) watchConfig() error {
	if e.configPath == "" || !e.game.Config.Assets.Watch {
		return nil
	}
	abs, err := filepath.Abs(e.configPath)
	if err != nil {
		return err
	}
	e.configPath = abs
	return e.assets.WatchFile(abs)
}

// applyChanges drains pending asset notifications without blocking.
func (e *Engine) applyChanges() {
	for {
		select {
		case c, ok := <-e.assets.Changes():
			if !ok {
				return
			}
			e.onAssetChange(c)
		default:
			return
		}
	}
}

func (e *Engine) onAssetChange(c assets.Change) {
	if c.Type != assets.AssetTypeConfig || c.Path != e.configPath {
		e.logger.Debug("asset changed", "path", c.Path, "type", c.Type, "op", c.Op)
		return
	}
	cfg, err := core.LoadConfig(e.configPath)
	if err != nil {
		e.logger.Warn("ignoring config change", "path", e.configPath, "err", err)
		return
	}
	if err := e.logger.SetLevelString(cfg.Log.Level); err != nil {
		e.logger.Warn("ignoring log level", "level", cfg.Log.Level, "err", err)
	}
	if e.game.FnOnConfig != nil {
		if err := e.game.FnOnConfig(cfg); err != nil {
			e.logger.Warn("config change rejected", "err", err)
			return
		}
	}
	e.logger.Info("config reloaded", "path", e.configPath)
}
