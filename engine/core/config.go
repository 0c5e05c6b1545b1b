package core

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	BackendSoftware = "software"
	BackendVulkan   = "vulkan"
	BackendDirectX  = "directx"
	BackendOpenGL   = "opengl"

	BindingRootCBV         = "root_cbv"
	BindingDescriptorTable = "descriptor_table"
)

type ApplicationSection struct {
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`
	// Window starting position, if applicable.
	PosX uint32 `toml:"pos_x"`
	PosY uint32 `toml:"pos_y"`
	// Window starting size, if applicable.
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
	// Run without a window. The software backend renders off-screen.
	Headless bool `toml:"headless"`
	// Stop after this many frames. Zero runs until the window closes.
	MaxFrames uint64 `toml:"max_frames"`
}

type RendererSection struct {
	Backend          string     `toml:"backend"`
	ThreadCount      int        `toml:"thread_count"`
	ObjectCount      int        `toml:"object_count"`
	ObjectsPerBundle int        `toml:"objects_per_bundle"`
	UseBundles       bool       `toml:"use_bundles"`
	Binding          string     `toml:"binding"`
	SwapBufferCount  uint32     `toml:"swap_buffer_count"`
	VSync            uint32     `toml:"vsync"`
	FenceTimeoutMS   int64      `toml:"fence_timeout_ms"`
	ClearColor       [4]float32 `toml:"clear_color"`
	LinearHeapSize   uint64     `toml:"linear_heap_size"`
	CaptureDir       string     `toml:"capture_dir"`
	CaptureEvery     uint64     `toml:"capture_every"`
}

type AssetsSection struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

type Config struct {
	Application ApplicationSection `toml:"application"`
	Log         LogConfig          `toml:"log"`
	Renderer    RendererSection    `toml:"renderer"`
	Assets      AssetsSection      `toml:"assets"`
}

func DefaultConfig() *Config {
	return &Config{
		Application: ApplicationSection{
			Name:   "Novus Test Sample",
			PosX:   100,
			PosY:   100,
			Width:  1280,
			Height: 720,
		},
		Log: LogConfig{
			Level: "info",
		},
		Renderer: RendererSection{
			Backend:          BackendSoftware,
			ThreadCount:      8,
			ObjectCount:      120000,
			ObjectsPerBundle: 200,
			Binding:          BindingRootCBV,
			SwapBufferCount:  2,
			VSync:            1,
			FenceTimeoutMS:   5000,
			ClearColor:       [4]float32{0.0, 0.2, 0.4, 1.0},
			LinearHeapSize:   4 << 20,
		},
		Assets: AssetsSection{
			Dir:   "assets",
			Watch: true,
		},
	}
}

// LoadConfig reads a TOML file on top of the defaults. A missing file is not
// an error; unknown keys are.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return nil, err
	}
	if err := DecodeConfig(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// DecodeConfig overlays TOML data onto cfg.
func DecodeConfig(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strict.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	return nil
}

// WriteConfig stores cfg as TOML.
func WriteConfig(path string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) Validate() error {
	r := &c.Renderer
	switch r.Backend {
	case BackendSoftware, BackendVulkan, BackendDirectX, BackendOpenGL:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, r.Backend)
	}
	switch r.Binding {
	case BindingRootCBV, BindingDescriptorTable:
	default:
		return fmt.Errorf("%w: unknown binding %q", ErrInvalidConfig, r.Binding)
	}
	if r.ThreadCount < 1 {
		return fmt.Errorf("%w: thread_count must be at least 1", ErrInvalidConfig)
	}
	if r.ObjectCount < 1 {
		return fmt.Errorf("%w: object_count must be at least 1", ErrInvalidConfig)
	}
	if r.UseBundles && r.ObjectsPerBundle < 1 {
		return fmt.Errorf("%w: objects_per_bundle must be at least 1 when bundles are enabled", ErrInvalidConfig)
	}
	if r.SwapBufferCount < 2 {
		return fmt.Errorf("%w: swap_buffer_count must be at least 2", ErrInvalidConfig)
	}
	if r.FenceTimeoutMS < 0 {
		return fmt.Errorf("%w: fence_timeout_ms cannot be negative", ErrInvalidConfig)
	}
	if c.Application.Width == 0 || c.Application.Height == 0 {
		return fmt.Errorf("%w: window size cannot be zero", ErrInvalidConfig)
	}
	return nil
}

// FenceTimeout is zero when fence waits must block indefinitely.
func (r RendererSection) FenceTimeout() time.Duration {
	return time.Duration(r.FenceTimeoutMS) * time.Millisecond
}
