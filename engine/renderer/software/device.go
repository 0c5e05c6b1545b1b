// Package software is a CPU implementation of the rhi device. It runs the
// same command stream a hardware backend would, validating resource states
// and bindings as it goes, and rasterizes draws as depth-tested points.
package software

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/novus/engine/core"
	"github.com/spaghettifunk/novus/engine/renderer/rhi"
)

const defaultQueueDepth = 64

var (
	_ rhi.Device          = (*Device)(nil)
	_ rhi.Buffer          = (*buffer)(nil)
	_ rhi.Texture         = (*texture)(nil)
	_ rhi.DescriptorTable = (*table)(nil)
	_ rhi.Fence           = (*fence)(nil)
	_ rhi.SwapChain       = (*swapChain)(nil)
)

type Options struct {
	Logger *core.Logger
	// CaptureDir receives every CaptureEvery-th presented frame as BMP.
	// Empty disables capture.
	CaptureDir   string
	CaptureEvery uint64
	// QueueDepth bounds the number of pending submissions.
	QueueDepth int
}

type Stats struct {
	Draws       uint64
	Pixels      uint64
	Submissions uint64
	Presents    uint64
}

type counters struct {
	draws       atomic.Uint64
	pixels      atomic.Uint64
	submissions atomic.Uint64
	presents    atomic.Uint64
}

type Device struct {
	logger  *core.Logger
	mem     *addressSpace
	queue   *queue
	capture *capturer
	stats   counters

	tablesMu  sync.RWMutex
	tables    map[uint32]*table
	nextTable uint32

	lostOnce sync.Once
	lostCh   chan struct{}
	lostErr  atomic.Value
	closed   atomic.Bool
}

func NewDevice(opts Options) (*Device, error) {
	logger := core.OrNop(opts.Logger).With("backend", "software")
	capture, err := newCapturer(opts.CaptureDir, opts.CaptureEvery, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: capture dir: %w", rhi.ErrDeviceCreation, err)
	}
	depth := opts.QueueDepth
	if depth <= 0 {
		depth = defaultQueueDepth
	}

	d := &Device{
		logger:  logger,
		mem:     newAddressSpace(),
		capture: capture,
		tables:  make(map[uint32]*table),
		lostCh:  make(chan struct{}),
	}
	d.queue = newQueue(d, depth)
	logger.Info("software device created", "queue_depth", depth, "capture", opts.CaptureDir != "")
	return d, nil
}

func (d *Device) Name() string {
	return "software"
}

func (d *Device) Queue() rhi.Queue {
	return d.queue
}

func (d *Device) CreateBuffer(desc rhi.BufferDesc) (rhi.Buffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("%w: buffer %s has zero size", rhi.ErrInvalidArgument, desc.Name)
	}
	if d.closed.Load() {
		return nil, fmt.Errorf("%w: device closed", rhi.ErrReleased)
	}
	b := &buffer{dev: d, heapType: desc.HeapType, data: make([]byte, desc.Size)}
	b.InitResource(rhi.ResourceKindBuffer, desc.Name)
	b.addr = d.mem.reserve(b.data)
	return b, nil
}

func (d *Device) CreateTexture(desc rhi.TextureDesc) (rhi.Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("%w: texture %s is %dx%d", rhi.ErrInvalidArgument, desc.Name, desc.Width, desc.Height)
	}
	if desc.DepthStencil && desc.Format != rhi.FormatD32Float {
		return nil, fmt.Errorf("%w: depth texture %s must be %s", rhi.ErrInvalidArgument, desc.Name, rhi.FormatD32Float)
	}
	if desc.DepthOrArraySize == 0 {
		desc.DepthOrArraySize = 1
	}
	return newTexture(desc), nil
}

// markLost records the first fatal error. Every later submission fails and
// every fence wait returns.
func (d *Device) markLost(err error) {
	d.lostOnce.Do(func() {
		d.lostErr.Store(err)
		close(d.lostCh)
		d.logger.Error("device lost", "err", err)
	})
}

// LostReason is nil while the device is healthy.
func (d *Device) LostReason() error {
	if err, ok := d.lostErr.Load().(error); ok {
		return err
	}
	return nil
}

func (d *Device) Stats() Stats {
	return Stats{
		Draws:       d.stats.draws.Load(),
		Pixels:      d.stats.pixels.Load(),
		Submissions: d.stats.submissions.Load(),
		Presents:    d.stats.presents.Load(),
	}
}

// Snapshot copies the pixels of a color texture. Only call it once the
// work that writes the texture has been fenced.
func (d *Device) Snapshot(t rhi.Texture) (*image.RGBA, error) {
	tex, ok := t.(*texture)
	if !ok || tex.color == nil {
		return nil, fmt.Errorf("%w: not a color texture from this device", rhi.ErrInvalidArgument)
	}
	out := image.NewRGBA(tex.color.Rect)
	copy(out.Pix, tex.color.Pix)
	return out, nil
}

// State reports the tracked state of a texture. Like Snapshot, it is only
// meaningful once the queue is idle.
func (d *Device) State(t rhi.Texture) (rhi.ResourceState, error) {
	tex, ok := t.(*texture)
	if !ok {
		return 0, fmt.Errorf("%w: texture from another device", rhi.ErrInvalidArgument)
	}
	return tex.state, nil
}

// Close drains the queue and stops it.
func (d *Device) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	d.queue.close()
	if err := d.LostReason(); err != nil {
		return errors.Join(rhi.ErrDeviceLost, err)
	}
	return nil
}
