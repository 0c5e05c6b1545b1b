package platform

import "sync/atomic"

// Headless is an off-screen Window. Rendering still happens, presentation
// just has nowhere to go.
type Headless struct {
	width  uint32
	height uint32
	closed atomic.Bool
}

func NewHeadless() *Headless {
	return &Headless{}
}

func (h *Headless) Startup(applicationName string, x, y, width, height uint32) error {
	h.width = width
	h.height = height
	h.closed.Store(false)
	return nil
}

func (h *Headless) PumpMessages() bool {
	return !h.closed.Load()
}

// Close makes the next PumpMessages report that the window is gone.
func (h *Headless) Close() {
	h.closed.Store(true)
}

func (h *Headless) Shutdown() error {
	h.Close()
	return nil
}

func (h *Headless) Handle() uintptr {
	return 0
}

func (h *Headless) FramebufferSize() (uint32, uint32) {
	return h.width, h.height
}
