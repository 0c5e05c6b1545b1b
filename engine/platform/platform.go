package platform

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/novus/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Surface is what a renderer backend needs from the window it presents to.
type Surface interface {
	// Handle is the native window handle, zero for off-screen surfaces.
	Handle() uintptr
	FramebufferSize() (uint32, uint32)
}

// Window is a Surface the engine loop can pump.
type Window interface {
	Surface
	Startup(applicationName string, x, y, width, height uint32) error
	// PumpMessages processes pending window events. It returns false once
	// the window has been asked to close.
	PumpMessages() bool
	Shutdown() error
}

type Platform struct {
	Window *glfw.Window

	logger *core.Logger
	width  atomic.Uint32
	height atomic.Uint32
}

func New(logger *core.Logger) *Platform {
	return &Platform{
		logger: core.OrNop(logger).With("component", "platform"),
	}
}

func (p *Platform) Startup(applicationName string, x uint32, y uint32, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		err = fmt.Errorf("failed to initialize glfw: %w", err)
		p.logger.Error(err)
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // the renderer owns presentation

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		err = fmt.Errorf("failed to create window: %w", err)
		p.logger.Error(err)
		glfw.Terminate()
		return err
	}
	p.Window = window

	fw, fh := window.GetFramebufferSize()
	p.width.Store(uint32(fw))
	p.height.Store(uint32(fh))

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	p.logger.Info("window created", "width", fw, "height", fh)
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

func (p *Platform) PumpMessages() bool {
	if p.Window == nil {
		return false
	}
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

func (p *Platform) Handle() uintptr {
	if p.Window == nil {
		return 0
	}
	return uintptr(unsafe.Pointer(p.Window.Handle()))
}

func (p *Platform) FramebufferSize() (uint32, uint32) {
	return p.width.Load(), p.height.Load()
}

// RequiredInstanceExtensions lists the Vulkan instance extensions glfw needs
// to create a surface for this window.
func (p *Platform) RequiredInstanceExtensions() []string {
	if p.Window == nil {
		return nil
	}
	return p.Window.GetRequiredInstanceExtensions()
}

// CreateWindowSurface creates a Vulkan surface for the window.
func (p *Platform) CreateWindowSurface(instance interface{}) (uintptr, error) {
	if p.Window == nil {
		return 0, fmt.Errorf("window not created")
	}
	return p.Window.CreateWindowSurface(instance, nil)
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if key == glfw.KeyEscape && action == glfw.Press {
		w.SetShouldClose(true)
	}
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.width.Store(uint32(width))
	p.height.Store(uint32(height))
	p.logger.Debug("framebuffer resized", "width", width, "height", height)
}
