package renderer

import (
	"fmt"

	"github.com/spaghettifunk/novus/engine/core"
	"github.com/spaghettifunk/novus/engine/math"
	"github.com/spaghettifunk/novus/engine/renderer/rhi"
)

// BindingMode selects how per-object constants reach the shader. It is
// chosen once and never mixed within a frame.
type BindingMode uint8

const (
	// BindingRootCBV binds each object's slot address directly.
	BindingRootCBV BindingMode = iota
	// BindingDescriptorTable binds each object's pre-built CBV descriptor.
	BindingDescriptorTable
)

func (b BindingMode) String() string {
	if b == BindingDescriptorTable {
		return core.BindingDescriptorTable
	}
	return core.BindingRootCBV
}

func ParseBindingMode(s string) (BindingMode, error) {
	switch s {
	case core.BindingRootCBV, "":
		return BindingRootCBV, nil
	case core.BindingDescriptorTable:
		return BindingDescriptorTable, nil
	}
	return 0, fmt.Errorf("%w: unknown binding %q", core.ErrInvalidConfig, s)
}

// FrameInfo is everything a recorder needs to know about the frame being
// built. It is read-only once dispatch starts.
type FrameInfo struct {
	Frame uint64
	// Time is the elapsed time in seconds.
	Time       float32
	View, Proj math.Mat4

	BackBuffer rhi.Texture
	RTV        rhi.CPUDescriptorHandle
	DSV        rhi.CPUDescriptorHandle
}

// Scene supplies per-object constants. WriteConstants is called from
// several goroutines at once, each with its own disjoint set of indices.
type Scene interface {
	ObjectCount() int
	WriteConstants(index int, frame FrameInfo, dst []byte)
}

// DrawState is the pipeline state shared read-only by every recorder.
type DrawState struct {
	RootSignature rhi.RootSignature
	Pipeline      rhi.PipelineState
	Viewport      rhi.Viewport
	Scissor       rhi.Rect
	VertexBuffer  rhi.VertexBufferView
	IndexBuffer   rhi.IndexBufferView
	IndexCount    uint32

	Binding   BindingMode
	Constants *rhi.SlottedBufferPool
	// Descriptors holds one CBV per slot of Constants. Only used with
	// BindingDescriptorTable and must be shader visible.
	Descriptors *rhi.DescriptorHeap
}

func (s *DrawState) validate(objects int) error {
	switch {
	case s.RootSignature == nil || s.Pipeline == nil:
		return fmt.Errorf("%w: draw state needs a root signature and a pipeline", rhi.ErrInvalidArgument)
	case s.Constants == nil || int(s.Constants.SlotCount()) < objects:
		return fmt.Errorf("%w: constant pool must hold %d slots", rhi.ErrInvalidArgument, objects)
	case s.Binding == BindingDescriptorTable && (s.Descriptors == nil || !s.Descriptors.ShaderVisible()):
		return fmt.Errorf("%w: table binding needs a shader-visible descriptor heap", rhi.ErrInvalidArgument)
	case s.Binding == BindingDescriptorTable && int(s.Descriptors.Capacity()) < objects:
		return fmt.Errorf("%w: descriptor heap must hold %d descriptors", rhi.ErrInvalidArgument, objects)
	}
	return nil
}

// Recorder owns one allocator and one command list and records the draws
// for a fixed range of objects. A recorder is used by one goroutine at a
// time.
type Recorder struct {
	index  int
	logger *core.Logger
	state  *DrawState
	scene  Scene

	rng   Range
	final bool

	allocator *rhi.CommandAllocator
	list      *rhi.CommandList

	bundleAllocator *rhi.CommandAllocator
	bundles         []*rhi.CommandList
}

func NewRecorder(index int, state *DrawState, scene Scene, logger *core.Logger) *Recorder {
	name := fmt.Sprintf("worker %d", index)
	return &Recorder{
		index:           index,
		logger:          core.OrNop(logger).With("worker", index),
		state:           state,
		scene:           scene,
		allocator:       rhi.NewCommandAllocator(rhi.CommandListDirect, name),
		list:            rhi.NewCommandList(rhi.CommandListDirect, name),
		bundleAllocator: rhi.NewCommandAllocator(rhi.CommandListBundle, name+" bundles"),
	}
}

func (r *Recorder) Index() int {
	return r.index
}

func (r *Recorder) Range() Range {
	return r.rng
}

// SetRange assigns the objects this recorder draws. The final recorder
// also hands the back buffer back to the present state. Bundles built for
// an earlier range are dropped.
func (r *Recorder) SetRange(rng Range, final bool) {
	if rng != r.rng {
		r.bundles = nil
	}
	r.rng = rng
	r.final = final
}

func (r *Recorder) List() *rhi.CommandList {
	return r.list
}

// Draws is the number of draws the last recording will issue, counting
// those replayed from bundles.
func (r *Recorder) Draws() int {
	n := r.list.DrawCount()
	for _, b := range r.bundles {
		n += b.DrawCount()
	}
	return n
}

func (r *Recorder) Bundles() int {
	return len(r.bundles)
}

// Record writes this frame's constants for the recorder's objects and
// records the list that draws them. The previous recording must have
// finished executing.
func (r *Recorder) Record(frame FrameInfo) error {
	st := r.state
	if err := r.allocator.Reset(); err != nil {
		return fmt.Errorf("worker %d: %w", r.index, err)
	}
	if err := r.list.Reset(r.allocator, st.Pipeline); err != nil {
		return fmt.Errorf("worker %d: %w", r.index, err)
	}

	for i := r.rng.Start; i < r.rng.End; i++ {
		dst := st.Constants.Map(uint32(i))
		r.scene.WriteConstants(i, frame, dst)
		st.Constants.Unmap(uint32(i))
	}

	cl := r.list
	if st.Binding == BindingDescriptorTable {
		cl.SetDescriptorHeaps(st.Descriptors.Table())
	}
	cl.SetGraphicsRootSignature(st.RootSignature)
	cl.SetViewport(st.Viewport)
	cl.SetScissorRect(st.Scissor)
	cl.SetRenderTargets(frame.RTV, frame.DSV)

	if len(r.bundles) > 0 {
		for _, b := range r.bundles {
			cl.ExecuteBundle(b)
		}
	} else {
		r.recordDraws(cl, r.rng)
	}

	if r.final {
		cl.ResourceBarrier(frame.BackBuffer, rhi.ResourceStateRenderTarget, rhi.ResourceStatePresent)
	}
	if err := cl.Close(); err != nil {
		return fmt.Errorf("worker %d: %w", r.index, err)
	}
	return nil
}

func (r *Recorder) recordDraws(cl *rhi.CommandList, rng Range) {
	st := r.state
	cl.SetPrimitiveTopology(rhi.PrimitiveTopologyTriangleList)
	cl.SetVertexBuffer(st.VertexBuffer)
	cl.SetIndexBuffer(st.IndexBuffer)
	for i := rng.Start; i < rng.End; i++ {
		switch st.Binding {
		case BindingDescriptorTable:
			cl.SetGraphicsRootDescriptorTable(0, st.Descriptors.GPUDescriptorHandle(uint32(i)))
		default:
			cl.SetGraphicsRootConstantBufferView(0, st.Constants.GPUHandle(uint32(i)))
		}
		cl.DrawIndexedInstanced(st.IndexCount, 1, 0, 0, 0)
	}
}

// BuildBundles records the recorder's draws once into bundles of at most
// objectsPerBundle objects. Record then replays them instead of recording
// draws. Per-object constants still change every frame because the bundles
// only reference the slots.
func (r *Recorder) BuildBundles(objectsPerBundle int) error {
	if objectsPerBundle < 1 {
		return fmt.Errorf("%w: objects per bundle must be positive", rhi.ErrInvalidArgument)
	}
	if err := r.bundleAllocator.Reset(); err != nil {
		return fmt.Errorf("worker %d: %w", r.index, err)
	}
	r.bundles = r.bundles[:0]

	st := r.state
	for start := r.rng.Start; start < r.rng.End; start += objectsPerBundle {
		end := min(start+objectsPerBundle, r.rng.End)
		b := rhi.NewCommandList(rhi.CommandListBundle, fmt.Sprintf("worker %d bundle %d", r.index, len(r.bundles)))
		if err := b.Reset(r.bundleAllocator, st.Pipeline); err != nil {
			return fmt.Errorf("worker %d: %w", r.index, err)
		}
		if st.Binding == BindingDescriptorTable {
			b.SetDescriptorHeaps(st.Descriptors.Table())
		}
		b.SetGraphicsRootSignature(st.RootSignature)
		r.recordDraws(b, Range{Start: start, End: end})
		if err := b.Close(); err != nil {
			return fmt.Errorf("worker %d: %w", r.index, err)
		}
		r.bundles = append(r.bundles, b)
	}
	r.logger.Debug("bundles built", "bundles", len(r.bundles), "objects", r.rng.Len())
	return nil
}
