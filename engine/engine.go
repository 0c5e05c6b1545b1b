package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/novus/engine/assets"
	"github.com/spaghettifunk/novus/engine/core"
	"github.com/spaghettifunk/novus/engine/platform"
)

type Stage uint32

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine has released everything
	EngineStageStopped
)

func (s Stage) String() string {
	switch s {
	case EngineStageUninitialized:
		return "uninitialized"
	case EngineStageInitializing:
		return "initializing"
	case EngineStageInitialized:
		return "initialized"
	case EngineStageRunning:
		return "running"
	case EngineStageShuttingDown:
		return "shutting_down"
	case EngineStageStopped:
		return "stopped"
	}
	return fmt.Sprintf("Stage(%d)", uint32(s))
}

var ErrWrongStage = errors.New("engine is in the wrong stage")

// metricsInterval is how often frame timings are logged.
const metricsInterval = 5 * time.Second

type Engine struct {
	logger     *core.Logger
	stage      atomic.Uint32
	game       *Game
	window     platform.Window
	assets     *assets.AssetManager
	clock      *core.Clock
	metrics    *core.Metrics
	configPath string
}

// New wires the engine around a game. configPath is watched for changes
// while running; it may be empty.
func New(g *Game, window platform.Window, configPath string, logger *core.Logger) (*Engine, error) {
	if g == nil || g.Config == nil || g.FnUpdate == nil || g.FnRender == nil {
		return nil, fmt.Errorf("%w: game needs a config and update and render callbacks", core.ErrInvalidConfig)
	}
	logger = core.OrNop(logger)
	am, err := assets.NewAssetManager(logger)
	if err != nil {
		return nil, err
	}
	return &Engine{
		logger:     logger.With("component", "engine", "session", core.ShortIdentifier()),
		game:       g,
		window:     window,
		assets:     am,
		clock:      core.NewClock(),
		metrics:    core.NewMetrics(),
		configPath: configPath,
	}, nil
}

func (e *Engine) Stage() Stage {
	return Stage(e.stage.Load())
}

func (e *Engine) setStage(s Stage) {
	e.stage.Store(uint32(s))
	e.logger.Debug("engine stage", "stage", s)
}

func (e *Engine) Metrics() *core.Metrics {
	return e.metrics
}

func (e *Engine) Initialize() error {
	if e.Stage() != EngineStageUninitialized {
		return fmt.Errorf("%w: initialize while %s", ErrWrongStage, e.Stage())
	}
	e.setStage(EngineStageInitializing)

	app := e.game.Config.Application
	if err := e.window.Startup(app.Name, app.PosX, app.PosY, app.Width, app.Height); err != nil {
		return err
	}
	if err := e.assets.Initialize(e.game.Config.Assets.Dir, e.game.Config.Assets.Watch); err != nil {
		return err
	}
	if err := e.watchConfig(); err != nil {
		e.logger.Warn("config file is not watched", "path", e.configPath, "err", err)
	}
	if e.game.FnInitialize != nil {
		if err := e.game.FnInitialize(e.window, e.assets); err != nil {
			return err
		}
	}

	e.setStage(EngineStageInitialized)
	return nil
}

// Run drives the game until the window closes, ctx is cancelled, or the
// configured frame limit is reached.
func (e *Engine) Run(ctx context.Context) error {
	if e.Stage() != EngineStageInitialized {
		return fmt.Errorf("%w: run while %s", ErrWrongStage, e.Stage())
	}
	e.setStage(EngineStageRunning)

	maxFrames := e.game.Config.Application.MaxFrames
	e.clock.Start()
	lastReport := time.Now()

	for ctx.Err() == nil {
		if !e.window.PumpMessages() {
			e.logger.Info("window closed, shutting down")
			break
		}
		e.applyChanges()

		frameStart := time.Now()
		e.clock.Tick()
		delta := e.clock.DeltaSeconds()

		if err := e.game.FnUpdate(delta); err != nil {
			e.logger.Error("game update failed, shutting down", "err", err)
			return err
		}
		if err := e.game.FnRender(ctx, delta); err != nil {
			e.logger.Error("game render failed, shutting down", "err", err)
			return err
		}
		e.metrics.Update(time.Since(frameStart))

		if time.Since(lastReport) >= metricsInterval {
			lastReport = time.Now()
			e.logger.Info("frame timing", "fps", e.metrics.FPS(), "frame_ms", e.metrics.FrameTime())
		}
		if maxFrames > 0 && e.metrics.TotalFrames() >= maxFrames {
			e.logger.Info("frame limit reached", "frames", maxFrames)
			break
		}
	}
	return nil
}

func (e *Engine) Shutdown() error {
	e.setStage(EngineStageShuttingDown)
	e.clock.Stop()

	var errs []error
	if e.game.FnShutdown != nil {
		errs = append(errs, e.game.FnShutdown())
	}
	errs = append(errs, e.assets.Shutdown(), e.window.Shutdown())

	e.setStage(EngineStageStopped)
	return errors.Join(errs...)
}
