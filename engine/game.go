package engine

import (
	"context"

	"github.com/spaghettifunk/novus/engine/assets"
	"github.com/spaghettifunk/novus/engine/core"
	"github.com/spaghettifunk/novus/engine/platform"
)

// Game is the set of callbacks the engine drives. Only FnUpdate and
// FnRender are required.
type Game struct {
	Config       *core.Config
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnConfig   OnConfig
	FnShutdown   Shutdown
}

type Initialize func(surface platform.Surface, assets *assets.AssetManager) error
type Update func(deltaTime float64) error
type Render func(ctx context.Context, deltaTime float64) error

// OnConfig receives a reloaded configuration. Only settings that can
// change at runtime should be applied.
type OnConfig func(cfg *core.Config) error
type Shutdown func() error
