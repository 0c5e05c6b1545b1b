package renderer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/novus/engine/core"
	"github.com/spaghettifunk/novus/engine/math"
	"github.com/spaghettifunk/novus/engine/renderer/rhi"
	"github.com/spaghettifunk/novus/engine/systems"
)

type FrameState uint32

const (
	FrameIdle FrameState = iota
	FrameDispatching
	FrameWaitingForRecorders
	FrameSubmitting
	FramePresenting
	FrameWaitingForFence
)

func (s FrameState) String() string {
	switch s {
	case FrameIdle:
		return "idle"
	case FrameDispatching:
		return "dispatching"
	case FrameWaitingForRecorders:
		return "waiting_for_recorders"
	case FrameSubmitting:
		return "submitting"
	case FramePresenting:
		return "presenting"
	case FrameWaitingForFence:
		return "waiting_for_fence"
	}
	return fmt.Sprintf("FrameState(%d)", uint32(s))
}

type CoordinatorConfig struct {
	Workers      int
	ClearColor   [4]float32
	SyncInterval uint32
	// FenceTimeout bounds each fence wait. Zero waits forever.
	FenceTimeout time.Duration
	// ObjectsPerBundle enables bundles when positive.
	ObjectsPerBundle int
}

// Targets are the views the coordinator renders into.
type Targets struct {
	// RTV holds one render target view per back buffer, in back buffer
	// order.
	RTV *rhi.DescriptorHeap
	DSV rhi.CPUDescriptorHandle
}

type FrameStats struct {
	Frame      uint64
	FenceValue uint64
	Draws      int
	Lists      int
	Record     time.Duration
	Submit     time.Duration
	FenceWait  time.Duration
	Total      time.Duration
}

// FrameCoordinator fans recording out to its recorders, joins them, and
// submits the primary list followed by every worker list in worker order.
// It then presents and waits for the frame's fence before returning, so
// nothing the frame used is still in flight. Methods must be called from
// one goroutine.
type FrameCoordinator struct {
	logger *core.Logger
	cfg    CoordinatorConfig

	queue   rhi.Queue
	swap    rhi.SwapChain
	jobs    *systems.JobSystem
	targets Targets

	fence      rhi.Fence
	fenceValue uint64

	primaryAllocator *rhi.CommandAllocator
	primary          *rhi.CommandList
	recorders        []*Recorder

	mu         sync.Mutex
	clearColor [4]float32

	state atomic.Uint32
	frame uint64
	stats FrameStats
}

func NewFrameCoordinator(cfg CoordinatorConfig, device rhi.Device, queue rhi.Queue, swap rhi.SwapChain,
	jobs *systems.JobSystem, targets Targets, state *DrawState, scene Scene, logger *core.Logger) (*FrameCoordinator, error) {
	logger = core.OrNop(logger).With("component", "frames")

	if cfg.Workers < 1 {
		return nil, fmt.Errorf("%w: need at least one recorder", rhi.ErrInvalidArgument)
	}
	if cfg.Workers > 1 && jobs == nil {
		return nil, fmt.Errorf("%w: %d recorders need a job system", rhi.ErrInvalidArgument, cfg.Workers)
	}
	if targets.RTV == nil || targets.RTV.Capacity() < swap.BufferCount() {
		return nil, fmt.Errorf("%w: need one render target view per back buffer", rhi.ErrInvalidArgument)
	}
	if err := state.validate(scene.ObjectCount()); err != nil {
		return nil, err
	}
	fence, err := device.CreateFence(0)
	if err != nil {
		return nil, fmt.Errorf("%w: frame fence: %w", rhi.ErrDeviceResourceCreationFailed, err)
	}
	fence.SetName("frame fence")

	c := &FrameCoordinator{
		logger:           logger,
		cfg:              cfg,
		queue:            queue,
		swap:             swap,
		jobs:             jobs,
		targets:          targets,
		fence:            fence,
		primaryAllocator: rhi.NewCommandAllocator(rhi.CommandListDirect, "primary"),
		primary:          rhi.NewCommandList(rhi.CommandListDirect, "primary"),
		clearColor:       cfg.ClearColor,
	}

	ranges := Partition(scene.ObjectCount(), cfg.Workers)
	for i, rng := range ranges {
		r := NewRecorder(i, state, scene, logger)
		r.SetRange(rng, i == len(ranges)-1)
		if cfg.ObjectsPerBundle > 0 {
			if err := r.BuildBundles(cfg.ObjectsPerBundle); err != nil {
				return nil, err
			}
		}
		c.recorders = append(c.recorders, r)
	}
	logger.Info("frame coordinator ready",
		"objects", scene.ObjectCount(), "workers", cfg.Workers,
		"binding", state.Binding, "bundles", cfg.ObjectsPerBundle > 0)
	return c, nil
}

func (c *FrameCoordinator) State() FrameState {
	return FrameState(c.state.Load())
}

func (c *FrameCoordinator) setState(s FrameState) {
	c.state.Store(uint32(s))
	c.logger.Debug("frame state", "frame", c.frame, "state", s)
}

func (c *FrameCoordinator) Stats() FrameStats {
	return c.stats
}

func (c *FrameCoordinator) Recorders() []*Recorder {
	return c.recorders
}

func (c *FrameCoordinator) SetClearColor(color [4]float32) {
	c.mu.Lock()
	c.clearColor = color
	c.mu.Unlock()
}

func (c *FrameCoordinator) ClearColor() [4]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearColor
}

// acquireTarget picks the back buffer and view the next frame renders to.
func (c *FrameCoordinator) acquireTarget(frame *FrameInfo) error {
	idx := c.swap.CurrentIndex()
	bb, err := c.swap.Buffer(idx)
	if err != nil {
		return err
	}
	frame.BackBuffer = bb
	frame.RTV = c.targets.RTV.CPUHandle(idx)
	frame.DSV = c.targets.DSV
	return nil
}

// RenderFrame runs one full frame. Any error is fatal: the device and the
// coordinator are left in an undefined state.
func (c *FrameCoordinator) RenderFrame(ctx context.Context, elapsed float32, view, proj math.Mat4) error {
	start := time.Now()
	c.frame++
	frame := FrameInfo{Frame: c.frame, Time: elapsed, View: view, Proj: proj}
	defer c.setState(FrameIdle)

	c.setState(FrameDispatching)
	if err := c.acquireTarget(&frame); err != nil {
		return fmt.Errorf("frame %d: %w", c.frame, err)
	}

	last := len(c.recorders) - 1
	var batch *systems.Batch
	if last > 0 {
		tasks := make([]systems.JobTask, 0, last)
		for _, r := range c.recorders[:last] {
			r := r
			tasks = append(tasks, systems.JobTask{
				Name:    fmt.Sprintf("record worker %d", r.Index()),
				OnStart: func() error { return r.Record(frame) },
			})
		}
		batch = c.jobs.SubmitBatch(tasks...)
	}
	lastErr := systems.Guard(func() error { return c.recorders[last].Record(frame) })
	primaryErr := systems.Guard(func() error { return c.recordPrimary(frame) })

	c.setState(FrameWaitingForRecorders)
	var batchErr error
	if batch != nil {
		batchErr = batch.Wait()
	}
	if err := errors.Join(batchErr, lastErr, primaryErr); err != nil {
		return fmt.Errorf("recording frame %d: %w", c.frame, err)
	}
	recorded := time.Now()

	c.setState(FrameSubmitting)
	lists := make([]*rhi.CommandList, 0, len(c.recorders)+1)
	lists = append(lists, c.primary)
	draws := 0
	for _, r := range c.recorders {
		lists = append(lists, r.List())
		draws += r.Draws()
	}
	if err := c.queue.ExecuteCommandLists(lists...); err != nil {
		return fmt.Errorf("submitting frame %d: %w", c.frame, err)
	}

	c.setState(FramePresenting)
	if err := c.swap.Present(c.cfg.SyncInterval); err != nil {
		return fmt.Errorf("presenting frame %d: %w", c.frame, err)
	}
	submitted := time.Now()

	c.setState(FrameWaitingForFence)
	if err := c.signalAndWait(ctx); err != nil {
		return fmt.Errorf("frame %d: %w", c.frame, err)
	}
	done := time.Now()

	c.stats = FrameStats{
		Frame:      c.frame,
		FenceValue: c.fenceValue,
		Draws:      draws,
		Lists:      len(lists),
		Record:     recorded.Sub(start),
		Submit:     submitted.Sub(recorded),
		FenceWait:  done.Sub(submitted),
		Total:      done.Sub(start),
	}
	return nil
}

// recordPrimary moves the back buffer into the render target state and
// clears the targets. It is submitted ahead of every worker list.
func (c *FrameCoordinator) recordPrimary(frame FrameInfo) error {
	if err := c.primaryAllocator.Reset(); err != nil {
		return err
	}
	if err := c.primary.Reset(c.primaryAllocator, nil); err != nil {
		return err
	}
	c.primary.ResourceBarrier(frame.BackBuffer, rhi.ResourceStatePresent, rhi.ResourceStateRenderTarget)
	c.primary.ClearRenderTargetView(frame.RTV, c.ClearColor())
	if frame.DSV != 0 {
		c.primary.ClearDepthStencilView(frame.DSV, 1)
	}
	return c.primary.Close()
}

func (c *FrameCoordinator) signalAndWait(ctx context.Context) error {
	c.fenceValue++
	value := c.fenceValue
	if err := c.queue.Signal(c.fence, value); err != nil {
		return err
	}
	if c.cfg.FenceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.FenceTimeout)
		defer cancel()
	}
	return c.fence.Wait(ctx, value)
}

// Flush waits until the queue has executed everything submitted so far.
func (c *FrameCoordinator) Flush(ctx context.Context) error {
	return c.signalAndWait(ctx)
}

// Destroy drains the queue. The coordinator cannot be used afterwards.
func (c *FrameCoordinator) Destroy(ctx context.Context) error {
	err := c.Flush(ctx)
	c.recorders = nil
	return err
}
