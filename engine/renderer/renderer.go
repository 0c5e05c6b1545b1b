// Package renderer records and submits frames on top of an rhi.Device.
package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/novus/engine/core"
	"github.com/spaghettifunk/novus/engine/platform"
	"github.com/spaghettifunk/novus/engine/renderer/rhi"
	"github.com/spaghettifunk/novus/engine/renderer/software"
	"github.com/spaghettifunk/novus/engine/renderer/vulkan"
)

// extensionSource is implemented by surfaces backed by a real window.
type extensionSource interface {
	RequiredInstanceExtensions() []string
}

// NewDevice creates the configured backend. When it cannot be created the
// software backend is used instead; only a failure of that is returned.
func NewDevice(cfg *core.Config, surface platform.Surface, logger *core.Logger) (rhi.Device, error) {
	logger = core.OrNop(logger)
	backend := cfg.Renderer.Backend

	dev, err := newBackend(cfg, backend, surface, logger)
	if err == nil {
		return dev, nil
	}
	if backend == core.BackendSoftware {
		return nil, err
	}
	logger.Warn("backend unavailable, falling back to software", "backend", backend, "err", err)
	return newBackend(cfg, core.BackendSoftware, surface, logger)
}

func newBackend(cfg *core.Config, backend string, surface platform.Surface, logger *core.Logger) (rhi.Device, error) {
	switch backend {
	case core.BackendSoftware:
		dev, err := software.NewDevice(software.Options{
			Logger:       logger,
			CaptureDir:   cfg.Renderer.CaptureDir,
			CaptureEvery: cfg.Renderer.CaptureEvery,
		})
		if err != nil {
			if !errors.Is(err, rhi.ErrDeviceCreation) {
				err = fmt.Errorf("%w: %w", rhi.ErrDeviceCreation, err)
			}
			return nil, err
		}
		return dev, nil
	case core.BackendVulkan:
		src, ok := surface.(extensionSource)
		if !ok {
			return nil, fmt.Errorf("%w: vulkan needs a window surface", rhi.ErrDeviceCreation)
		}
		return vulkan.NewDevice(vulkan.Options{
			Logger:     logger,
			AppName:    cfg.Application.Name,
			Extensions: src.RequiredInstanceExtensions(),
		})
	case core.BackendDirectX, core.BackendOpenGL:
		return nil, fmt.Errorf("%w: %s", rhi.ErrBackendNotImplemented, backend)
	}
	return nil, fmt.Errorf("%w: unknown backend %q", rhi.ErrDeviceCreation, backend)
}
