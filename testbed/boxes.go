// Package testbed is the box-field sample: tens of thousands of spinning
// boxes recorded across several goroutines every frame.
package testbed

import (
	"context"
	"errors"
	"fmt"

	"github.com/spaghettifunk/novus/engine"
	"github.com/spaghettifunk/novus/engine/assets"
	"github.com/spaghettifunk/novus/engine/core"
	"github.com/spaghettifunk/novus/engine/math"
	"github.com/spaghettifunk/novus/engine/platform"
	"github.com/spaghettifunk/novus/engine/renderer"
	"github.com/spaghettifunk/novus/engine/renderer/components"
	"github.com/spaghettifunk/novus/engine/renderer/rhi"
	"github.com/spaghettifunk/novus/engine/systems"
)

const shaderFile = "boxes.hlsl"

var cameraEye = math.NewVec3(0, 20, 50)

type BoxesApp struct {
	*engine.Game

	logger *core.Logger
	cfg    *core.Config
	assets *assets.AssetManager

	clock  *core.Clock
	camera *components.Camera
	scene  *boxField

	device rhi.Device
	swap   rhi.SwapChain
	jobs   *systems.JobSystem

	rtvs      *rhi.DescriptorHeap
	dsvs      *rhi.DescriptorHeap
	depth     rhi.Texture
	geometry  *rhi.LinearResourceHeap
	constants *rhi.SlottedBufferPool
	cbvs      *rhi.DescriptorHeap

	coordinator *renderer.FrameCoordinator
}

// NewBoxesApp builds the sample and hooks it into the engine callbacks.
// The asset manager is supplied by the engine; when Init is called
// directly, SetAssets must be called first.
func NewBoxesApp(cfg *core.Config, logger *core.Logger) *BoxesApp {
	b := &BoxesApp{
		logger: core.OrNop(logger).With("component", "boxes"),
		cfg:    cfg,
		clock:  core.NewClock(),
		scene:  &boxField{count: cfg.Renderer.ObjectCount},
	}
	b.Game = &engine.Game{
		Config: cfg,
		State:  b,
		FnInitialize: func(surface platform.Surface, am *assets.AssetManager) error {
			b.SetAssets(am)
			return b.Init(surface)
		},
		FnUpdate: func(float64) error {
			b.Update()
			return nil
		},
		FnRender: func(ctx context.Context, _ float64) error {
			return b.RenderContext(ctx)
		},
		FnOnConfig: b.onConfig,
		FnShutdown: b.Destroy,
	}
	return b
}

func (b *BoxesApp) SetAssets(am *assets.AssetManager) {
	b.assets = am
}

// Init creates every GPU object the sample needs. Any error is fatal.
func (b *BoxesApp) Init(surface platform.Surface) error {
	if b.assets == nil {
		return fmt.Errorf("%w: no asset manager", core.ErrInvalidConfig)
	}
	rc := b.cfg.Renderer
	width, height := surface.FramebufferSize()
	if width == 0 || height == 0 {
		width, height = b.cfg.Application.Width, b.cfg.Application.Height
	}

	binding, err := renderer.ParseBindingMode(rc.Binding)
	if err != nil {
		return err
	}

	b.device, err = renderer.NewDevice(b.cfg, surface, b.logger)
	if err != nil {
		return err
	}
	b.swap, err = b.device.CreateSwapChain(rhi.SwapChainDesc{
		Name:        "swap chain",
		Window:      surface.Handle(),
		Width:       width,
		Height:      height,
		BufferCount: rc.SwapBufferCount,
		Format:      rhi.FormatR8G8B8A8Unorm,
	})
	if err != nil {
		return fmt.Errorf("%w: swap chain: %w", rhi.ErrDeviceCreation, err)
	}

	if err := b.createTargets(width, height); err != nil {
		return err
	}
	state, err := b.createPipeline(binding, width, height)
	if err != nil {
		return err
	}
	if err := b.createGeometry(state); err != nil {
		return err
	}
	if err := b.createConstants(state); err != nil {
		return err
	}

	b.jobs, err = systems.NewJobSystem(b.logger, max(rc.ThreadCount-1, 1), rc.ThreadCount)
	if err != nil {
		return err
	}
	perBundle := 0
	if rc.UseBundles {
		perBundle = rc.ObjectsPerBundle
	}
	b.coordinator, err = renderer.NewFrameCoordinator(renderer.CoordinatorConfig{
		Workers:          rc.ThreadCount,
		ClearColor:       rc.ClearColor,
		SyncInterval:     rc.VSync,
		FenceTimeout:     rc.FenceTimeout(),
		ObjectsPerBundle: perBundle,
	}, b.device, b.device.Queue(), b.swap, b.jobs,
		renderer.Targets{RTV: b.rtvs, DSV: b.dsvs.CPUHandle(0)}, state, b.scene, b.logger)
	if err != nil {
		return err
	}

	b.camera = components.NewCamera(cameraEye, math.NewVec3Zero(), math.K_PI/4, float32(width)/float32(height), 1, 10000)
	b.clock.Start()
	b.logger.Info("boxes ready", "device", b.device.Name(), "objects", b.scene.count,
		"threads", rc.ThreadCount, "binding", binding, "bundles", rc.UseBundles)
	return nil
}

// createTargets builds one render target view per back buffer and the depth
// buffer with its view.
func (b *BoxesApp) createTargets(width, height uint32) error {
	var err error
	count := b.swap.BufferCount()
	if b.rtvs, err = rhi.NewDescriptorHeap(b.device, count, rhi.DescriptorTypeRTV, false, "render targets"); err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		bb, err := b.swap.Buffer(i)
		if err != nil {
			return err
		}
		if err := b.device.CreateRenderTargetView(bb, b.rtvs.CPUHandle(i)); err != nil {
			return err
		}
	}

	b.depth, err = b.device.CreateTexture(rhi.TextureDesc{
		Name:         "depth",
		Kind:         rhi.ResourceKindTexture2D,
		Width:        width,
		Height:       height,
		Format:       rhi.FormatD32Float,
		DepthStencil: true,
		InitialState: rhi.ResourceStateDepthWrite,
	})
	if err != nil {
		return fmt.Errorf("%w: depth buffer: %w", rhi.ErrDeviceResourceCreationFailed, err)
	}
	if b.dsvs, err = rhi.NewDescriptorHeap(b.device, 1, rhi.DescriptorTypeDSV, false, "depth stencil"); err != nil {
		return err
	}
	return b.device.CreateDepthStencilView(b.depth, b.dsvs.CPUHandle(0))
}

func (b *BoxesApp) createPipeline(binding renderer.BindingMode, width, height uint32) (*renderer.DrawState, error) {
	param := rhi.RootParameter{Type: rhi.RootParameterCBV}
	if binding == renderer.BindingDescriptorTable {
		param = rhi.RootParameter{Type: rhi.RootParameterDescriptorTable, NumDescriptors: 1}
	}
	rs, err := b.device.CreateRootSignature(rhi.RootSignatureDesc{
		Name:             "boxes",
		Parameters:       []rhi.RootParameter{param},
		AllowInputLayout: true,
	})
	if err != nil {
		return nil, err
	}

	shader, err := b.assets.LoadShader(shaderFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rhi.ErrPipelineCreation, err)
	}
	pso, err := b.device.CreatePipelineState(rhi.PipelineStateDesc{
		Name:          "boxes",
		RootSignature: rs,
		VS:            shader,
		PS:            shader,
		InputLayout: []rhi.InputElement{
			{Semantic: "POSITION", Format: rhi.FormatR32G32B32Float},
			{Semantic: "NORMAL", Format: rhi.FormatR32G32B32Float, Offset: 12},
		},
		Topology:     rhi.PrimitiveTopologyTriangleList,
		RTVFormat:    rhi.FormatR8G8B8A8Unorm,
		DSVFormat:    rhi.FormatD32Float,
		DepthEnabled: true,
	})
	if err != nil {
		return nil, err
	}

	return &renderer.DrawState{
		RootSignature: rs,
		Pipeline:      pso,
		Viewport:      rhi.Viewport{Width: float32(width), Height: float32(height), MaxDepth: 1},
		Scissor:       rhi.Rect{Right: int32(width), Bottom: int32(height)},
		Binding:       binding,
	}, nil
}

// createGeometry places the box mesh in the linear upload heap.
func (b *BoxesApp) createGeometry(state *renderer.DrawState) error {
	var err error
	b.geometry, err = rhi.NewLinearResourceHeap(b.device, b.cfg.Renderer.LinearHeapSize, rhi.HeapTypeUpload, "geometry")
	if err != nil {
		return err
	}
	box := math.NewBox(1, 1, 1)
	vertices, indices := box.VertexBytes(), box.IndexBytes()

	vb, err := b.geometry.Allocate(uint64(len(vertices)), math.SimpleVertexSize)
	if err != nil {
		return fmt.Errorf("vertex buffer: %w", err)
	}
	copy(vb.Data, vertices)
	ib, err := b.geometry.Allocate(uint64(len(indices)), 4)
	if err != nil {
		return fmt.Errorf("index buffer: %w", err)
	}
	copy(ib.Data, indices)

	state.VertexBuffer = rhi.VertexBufferView{Location: vb.Address, Size: uint32(vb.Size), Stride: math.SimpleVertexSize}
	state.IndexBuffer = rhi.IndexBufferView{Location: ib.Address, Size: uint32(ib.Size), Format: rhi.FormatR32Uint}
	state.IndexCount = uint32(len(box.Indices))
	return nil
}

// createConstants allocates one constant buffer slot per box. Table
// binding also needs a CBV per slot, written into a CPU-only staging heap
// and then copied into the shader-visible one.
func (b *BoxesApp) createConstants(state *renderer.DrawState) error {
	n := uint32(b.scene.count)
	var err error
	b.constants, err = rhi.NewSlottedBufferPool(b.device, n, CBPerObjectSize, "per object constants")
	if err != nil {
		return err
	}
	state.Constants = b.constants
	if state.Binding != renderer.BindingDescriptorTable {
		return nil
	}

	staging, err := rhi.NewDescriptorHeap(b.device, n, rhi.DescriptorTypeCBVSRVUAV, false, "per object views staging")
	if err != nil {
		return err
	}
	defer staging.Release()
	first, err := staging.Reserve(n)
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		if err := b.device.CreateConstantBufferView(b.constants.ViewDesc(i), staging.CPUHandle(first+i)); err != nil {
			return err
		}
	}
	b.cbvs, err = rhi.NewDescriptorHeap(b.device, 1, rhi.DescriptorTypeCBVSRVUAV, true, "per object views")
	if err != nil {
		return err
	}
	if err := b.cbvs.CopyFrom(staging); err != nil {
		return err
	}
	state.Descriptors = b.cbvs
	return nil
}

// Update advances the frame timer. No GPU work happens here.
func (b *BoxesApp) Update() {
	b.clock.Tick()
}

func (b *BoxesApp) Render() error {
	return b.RenderContext(context.Background())
}

func (b *BoxesApp) RenderContext(ctx context.Context) error {
	if b.coordinator == nil {
		return fmt.Errorf("%w: render before init", rhi.ErrInvalidArgument)
	}
	return b.coordinator.RenderFrame(ctx, float32(b.clock.ElapsedSeconds()), b.camera.View(), b.camera.Projection())
}

func (b *BoxesApp) Coordinator() *renderer.FrameCoordinator {
	return b.coordinator
}

func (b *BoxesApp) Device() rhi.Device {
	return b.device
}

func (b *BoxesApp) SwapChain() rhi.SwapChain {
	return b.swap
}

func (b *BoxesApp) onConfig(cfg *core.Config) error {
	if b.coordinator != nil {
		b.coordinator.SetClearColor(cfg.Renderer.ClearColor)
	}
	return nil
}

// Destroy drains the queue, leaves fullscreen and releases everything Init
// created. It is safe to call after a partial Init.
func (b *BoxesApp) Destroy() error {
	var errs []error
	if b.coordinator != nil {
		errs = append(errs, b.coordinator.Destroy(context.Background()))
		b.coordinator = nil
	}
	if b.swap != nil && b.swap.Fullscreen() {
		errs = append(errs, b.swap.SetFullscreen(false))
	}
	if b.jobs != nil {
		errs = append(errs, b.jobs.Shutdown())
		b.jobs = nil
	}
	if b.cbvs != nil {
		errs = append(errs, b.cbvs.Release())
	}
	if b.constants != nil {
		errs = append(errs, b.constants.Release())
	}
	if b.geometry != nil {
		errs = append(errs, b.geometry.Release())
	}
	if b.dsvs != nil {
		errs = append(errs, b.dsvs.Release())
	}
	if b.depth != nil {
		errs = append(errs, b.depth.Release())
	}
	if b.rtvs != nil {
		errs = append(errs, b.rtvs.Release())
	}
	if b.swap != nil {
		errs = append(errs, b.swap.Close())
		b.swap = nil
	}
	if b.device != nil {
		errs = append(errs, b.device.Close())
		b.device = nil
	}
	return errors.Join(errs...)
}
