package software

import (
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/novus/engine/renderer/rhi"
)

// swapChain keeps its back buffers off-screen. Presented frames are counted
// and optionally written to disk.
type swapChain struct {
	dev        *Device
	desc       rhi.SwapChainDesc
	buffers    []*texture
	current    atomic.Uint32
	fullscreen atomic.Bool
	presented  atomic.Uint64
	closed     atomic.Bool
}

func (d *Device) CreateSwapChain(desc rhi.SwapChainDesc) (rhi.SwapChain, error) {
	if desc.BufferCount < 2 {
		return nil, fmt.Errorf("%w: swap chain needs at least 2 buffers, got %d", rhi.ErrInvalidArgument, desc.BufferCount)
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("%w: swap chain size %dx%d", rhi.ErrInvalidArgument, desc.Width, desc.Height)
	}
	if desc.Format == rhi.FormatUnknown {
		desc.Format = rhi.FormatR8G8B8A8Unorm
	}

	sc := &swapChain{dev: d, desc: desc}
	for i := uint32(0); i < desc.BufferCount; i++ {
		sc.buffers = append(sc.buffers, newTexture(rhi.TextureDesc{
			Name:             fmt.Sprintf("%s back buffer %d", desc.Name, i),
			Kind:             rhi.ResourceKindTexture2D,
			Width:            desc.Width,
			Height:           desc.Height,
			DepthOrArraySize: 1,
			Format:           desc.Format,
			RenderTarget:     true,
			InitialState:     rhi.ResourceStatePresent,
		}))
	}
	d.logger.Debug("swap chain created", "buffers", desc.BufferCount, "width", desc.Width, "height", desc.Height)
	return sc, nil
}

func (sc *swapChain) BufferCount() uint32 {
	return uint32(len(sc.buffers))
}

func (sc *swapChain) CurrentIndex() uint32 {
	return sc.current.Load()
}

func (sc *swapChain) Buffer(index uint32) (rhi.Texture, error) {
	if index >= uint32(len(sc.buffers)) {
		return nil, fmt.Errorf("%w: back buffer %d of %d", rhi.ErrIndexOutOfRange, index, len(sc.buffers))
	}
	return sc.buffers[index], nil
}

func (sc *swapChain) Present(syncInterval uint32) error {
	if sc.closed.Load() {
		return fmt.Errorf("%w: swap chain %s", rhi.ErrReleased, sc.desc.Name)
	}
	idx := sc.current.Load()
	if err := sc.dev.queue.present(sc, idx); err != nil {
		return err
	}
	sc.current.Store((idx + 1) % uint32(len(sc.buffers)))
	return nil
}

// display runs on the queue goroutine when the present is reached.
func (sc *swapChain) display(index uint32) error {
	bb := sc.buffers[index]
	if bb.state != rhi.ResourceStatePresent {
		return fmt.Errorf("%w: presenting %s while it is %s", rhi.ErrInvalidArgument, bb.Name(), bb.state)
	}
	frame := sc.presented.Add(1)
	sc.dev.stats.presents.Add(1)
	if sc.dev.capture != nil {
		sc.dev.capture.maybeSave(frame, bb)
	}
	return nil
}

func (sc *swapChain) SetFullscreen(fullscreen bool) error {
	sc.fullscreen.Store(fullscreen)
	return nil
}

func (sc *swapChain) Fullscreen() bool {
	return sc.fullscreen.Load()
}

func (sc *swapChain) Close() error {
	if sc.closed.Swap(true) {
		return nil
	}
	for _, bb := range sc.buffers {
		bb.Release()
	}
	return nil
}
