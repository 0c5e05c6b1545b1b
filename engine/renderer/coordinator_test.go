package renderer

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/spaghettifunk/novus/engine/math"
	"github.com/spaghettifunk/novus/engine/renderer/rhi"
	"github.com/spaghettifunk/novus/engine/renderer/software"
	"github.com/spaghettifunk/novus/engine/systems"
)

const (
	testWidth  = 64
	testHeight = 64
)

// recordingQueue remembers the order lists are submitted in.
type recordingQueue struct {
	rhi.Queue

	mu     sync.Mutex
	frames [][]string
	drop   bool
}

func (q *recordingQueue) ExecuteCommandLists(lists ...*rhi.CommandList) error {
	names := make([]string, len(lists))
	for i, cl := range lists {
		names[i] = cl.Name()
	}
	q.mu.Lock()
	q.frames = append(q.frames, names)
	q.mu.Unlock()
	return q.Queue.ExecuteCommandLists(lists...)
}

func (q *recordingQueue) Signal(f rhi.Fence, v uint64) error {
	if q.drop {
		return nil
	}
	return q.Queue.Signal(f, v)
}

// gridScene places objects on a small grid in front of the camera. jitter
// makes workers finish in a random order.
type gridScene struct {
	n      int
	jitter bool
	panics int
}

func (s *gridScene) ObjectCount() int {
	return s.n
}

func (s *gridScene) WriteConstants(i int, f FrameInfo, dst []byte) {
	if s.panics > 0 && i == s.panics {
		panic("bad object")
	}
	if s.jitter {
		time.Sleep(time.Duration(rand.IntN(200)) * time.Microsecond)
	}
	pos := math.NewVec3(float32(i%8)-3.5, float32(i/8%8)-3.5, 0)
	world := math.NewMat4UniformScale(0.5).Mul(math.NewMat4Translation(pos))
	world.Mul(f.View).Mul(f.Proj).Put(dst)
}

type harness struct {
	dev   *software.Device
	swap  rhi.SwapChain
	queue *recordingQueue
	coord *FrameCoordinator
	view  math.Mat4
	proj  math.Mat4
}

func newHarness(t *testing.T, scene Scene, workers int, mode BindingMode, perBundle int) *harness {
	t.Helper()
	dev, err := software.NewDevice(software.Options{})
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	t.Cleanup(func() { dev.Close() })

	swap, err := dev.CreateSwapChain(rhi.SwapChainDesc{Name: "test", Width: testWidth, Height: testHeight, BufferCount: 2})
	if err != nil {
		t.Fatalf("CreateSwapChain: %v", err)
	}
	rtvs, err := rhi.NewDescriptorHeap(dev, 2, rhi.DescriptorTypeRTV, false, "rtv")
	if err != nil {
		t.Fatalf("rtv heap: %v", err)
	}
	for i := uint32(0); i < 2; i++ {
		bb, _ := swap.Buffer(i)
		if err := dev.CreateRenderTargetView(bb, rtvs.CPUHandle(i)); err != nil {
			t.Fatalf("CreateRenderTargetView: %v", err)
		}
	}
	depth, err := dev.CreateTexture(rhi.TextureDesc{
		Name: "depth", Width: testWidth, Height: testHeight, Format: rhi.FormatD32Float,
		DepthStencil: true, InitialState: rhi.ResourceStateDepthWrite,
	})
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	dsvs, _ := rhi.NewDescriptorHeap(dev, 1, rhi.DescriptorTypeDSV, false, "dsv")
	if err := dev.CreateDepthStencilView(depth, dsvs.CPUHandle(0)); err != nil {
		t.Fatalf("CreateDepthStencilView: %v", err)
	}

	paramType := rhi.RootParameterCBV
	if mode == BindingDescriptorTable {
		paramType = rhi.RootParameterDescriptorTable
	}
	rs, err := dev.CreateRootSignature(rhi.RootSignatureDesc{
		Name:             "root",
		Parameters:       []rhi.RootParameter{{Type: paramType, NumDescriptors: 1}},
		AllowInputLayout: true,
	})
	if err != nil {
		t.Fatalf("CreateRootSignature: %v", err)
	}
	pso, err := dev.CreatePipelineState(rhi.PipelineStateDesc{
		Name:          "boxes",
		RootSignature: rs,
		VS:            []byte("vs"),
		PS:            []byte("ps"),
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
		t.Fatalf("CreatePipelineState: %v", err)
	}

	box := math.NewBox(1, 1, 1)
	geometry, err := rhi.NewLinearResourceHeap(dev, 64<<10, rhi.HeapTypeUpload, "geometry")
	if err != nil {
		t.Fatalf("geometry heap: %v", err)
	}
	vb, _ := geometry.Allocate(uint64(len(box.VertexBytes())), 16)
	copy(vb.Data, box.VertexBytes())
	ib, _ := geometry.Allocate(uint64(len(box.IndexBytes())), 16)
	copy(ib.Data, box.IndexBytes())

	n := uint32(scene.ObjectCount())
	pool, err := rhi.NewSlottedBufferPool(dev, n, math.Mat4Size, "constants")
	if err != nil {
		t.Fatalf("NewSlottedBufferPool: %v", err)
	}

	state := &DrawState{
		RootSignature: rs,
		Pipeline:      pso,
		Viewport:      rhi.Viewport{Width: testWidth, Height: testHeight, MaxDepth: 1},
		Scissor:       rhi.Rect{Right: testWidth, Bottom: testHeight},
		VertexBuffer:  rhi.VertexBufferView{Location: vb.Address, Size: uint32(vb.Size), Stride: math.SimpleVertexSize},
		IndexBuffer:   rhi.IndexBufferView{Location: ib.Address, Size: uint32(ib.Size), Format: rhi.FormatR32Uint},
		IndexCount:    uint32(len(box.Indices)),
		Binding:       mode,
		Constants:     pool,
	}
	if mode == BindingDescriptorTable {
		staging, _ := rhi.NewDescriptorHeap(dev, n, rhi.DescriptorTypeCBVSRVUAV, false, "cbv staging")
		for i := uint32(0); i < n; i++ {
			if err := dev.CreateConstantBufferView(pool.ViewDesc(i), staging.CPUHandle(i)); err != nil {
				t.Fatalf("CreateConstantBufferView: %v", err)
			}
		}
		visible, _ := rhi.NewDescriptorHeap(dev, 1, rhi.DescriptorTypeCBVSRVUAV, true, "cbv")
		if err := visible.CopyFrom(staging); err != nil {
			t.Fatalf("CopyFrom: %v", err)
		}
		state.Descriptors = visible
	}

	jobs, err := systems.NewJobSystem(nil, max(workers-1, 1), workers)
	if err != nil {
		t.Fatalf("NewJobSystem: %v", err)
	}
	t.Cleanup(func() { jobs.Shutdown() })

	q := &recordingQueue{Queue: dev.Queue()}
	coord, err := NewFrameCoordinator(CoordinatorConfig{
		Workers:          workers,
		ClearColor:       [4]float32{0, 0, 0, 1},
		FenceTimeout:     5 * time.Second,
		ObjectsPerBundle: perBundle,
	}, dev, q, swap, jobs, Targets{RTV: rtvs, DSV: dsvs.CPUHandle(0)}, state, scene, nil)
	if err != nil {
		t.Fatalf("NewFrameCoordinator: %v", err)
	}

	return &harness{
		dev:   dev,
		swap:  swap,
		queue: q,
		coord: coord,
		view:  math.NewMat4LookAt(math.NewVec3(0, 0, 10), math.NewVec3Zero(), math.NewVec3Up()),
		proj:  math.NewMat4Perspective(math.K_PI/4, 1, 1, 100),
	}
}

func (h *harness) render(t *testing.T, frames int) {
	t.Helper()
	for i := 0; i < frames; i++ {
		if err := h.coord.RenderFrame(context.Background(), float32(i)/60, h.view, h.proj); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
}

func TestSubmissionOrderIsDeterministic(t *testing.T) {
	const workers = 6
	h := newHarness(t, &gridScene{n: 60, jitter: true}, workers, BindingRootCBV, 0)
	h.render(t, 10)

	want := []string{"primary", "worker 0", "worker 1", "worker 2", "worker 3", "worker 4", "worker 5"}
	if len(h.queue.frames) != 10 {
		t.Fatalf("%d submissions, want 10", len(h.queue.frames))
	}
	for f, got := range h.queue.frames {
		if len(got) != len(want) {
			t.Fatalf("frame %d submitted %v", f, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("frame %d submitted %v, want %v", f, got, want)
			}
		}
	}
}

func TestFrameDrawsEveryObjectOnce(t *testing.T) {
	cases := []struct {
		name      string
		mode      BindingMode
		perBundle int
	}{
		{"root cbv", BindingRootCBV, 0},
		{"descriptor table", BindingDescriptorTable, 0},
		{"root cbv bundles", BindingRootCBV, 4},
		{"descriptor table bundles", BindingDescriptorTable, 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			const objects, workers, frames = 50, 4, 3
			h := newHarness(t, &gridScene{n: objects}, workers, tc.mode, tc.perBundle)
			h.render(t, frames)

			stats := h.coord.Stats()
			if stats.Draws != objects {
				t.Errorf("frame stats count %d draws, want %d", stats.Draws, objects)
			}
			if stats.Lists != workers+1 || stats.FenceValue != frames || stats.Frame != frames {
				t.Errorf("stats = %+v", stats)
			}
			dev := h.dev.Stats()
			if dev.Draws != objects*frames || dev.Presents != frames {
				t.Errorf("device stats = %+v", dev)
			}
			if dev.Pixels == 0 {
				t.Errorf("nothing reached the render target")
			}
			for i := uint32(0); i < 2; i++ {
				bb, _ := h.swap.Buffer(i)
				if s, _ := h.dev.State(bb); s != rhi.ResourceStatePresent {
					t.Errorf("back buffer %d left in %s", i, s)
				}
			}
			if h.coord.State() != FrameIdle {
				t.Errorf("coordinator left in %s", h.coord.State())
			}
			if tc.perBundle > 0 {
				for _, r := range h.coord.Recorders() {
					want := (r.Range().Len() + tc.perBundle - 1) / tc.perBundle
					if r.Bundles() != want {
						t.Errorf("worker %d has %d bundles, want %d", r.Index(), r.Bundles(), want)
					}
				}
			}
		})
	}
}

func TestBackBufferAlternates(t *testing.T) {
	h := newHarness(t, &gridScene{n: 8}, 2, BindingRootCBV, 0)
	for i := 0; i < 4; i++ {
		if got, want := h.swap.CurrentIndex(), uint32(i%2); got != want {
			t.Fatalf("frame %d renders to back buffer %d, want %d", i, got, want)
		}
		h.render(t, 1)
	}
}

func TestClearColorChange(t *testing.T) {
	h := newHarness(t, &gridScene{n: 1}, 1, BindingRootCBV, 0)
	h.coord.SetClearColor([4]float32{1, 0, 0, 1})
	bb, _ := h.swap.Buffer(h.swap.CurrentIndex())
	h.render(t, 1)

	img, err := h.dev.Snapshot(bb)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if c := img.RGBAAt(0, 0); c.R != 255 || c.G != 0 || c.B != 0 {
		t.Errorf("corner pixel %v, want red", c)
	}
}

func TestRecorderPanicFailsFrame(t *testing.T) {
	h := newHarness(t, &gridScene{n: 40, panics: 3}, 4, BindingRootCBV, 0)
	err := h.coord.RenderFrame(context.Background(), 0, h.view, h.proj)
	if !errors.Is(err, systems.ErrJobPanicked) {
		t.Fatalf("RenderFrame = %v, want a job panic", err)
	}
	if len(h.queue.frames) != 0 {
		t.Errorf("a failed recording was submitted")
	}
}

func TestFenceTimeoutIsDeviceLost(t *testing.T) {
	h := newHarness(t, &gridScene{n: 4}, 1, BindingRootCBV, 0)
	h.coord.cfg.FenceTimeout = 20 * time.Millisecond
	h.queue.drop = true
	err := h.coord.RenderFrame(context.Background(), 0, h.view, h.proj)
	if !errors.Is(err, rhi.ErrDeviceLost) {
		t.Fatalf("RenderFrame = %v, want ErrDeviceLost", err)
	}
}

func TestCoordinatorValidation(t *testing.T) {
	h := newHarness(t, &gridScene{n: 4}, 1, BindingRootCBV, 0)
	state := h.coord.recorders[0].state

	if _, err := NewFrameCoordinator(CoordinatorConfig{Workers: 0}, h.dev, h.queue, h.swap, nil,
		h.coord.targets, state, &gridScene{n: 4}, nil); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Errorf("zero workers: %v", err)
	}
	if _, err := NewFrameCoordinator(CoordinatorConfig{Workers: 3}, h.dev, h.queue, h.swap, nil,
		h.coord.targets, state, &gridScene{n: 4}, nil); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Errorf("workers without a job system: %v", err)
	}
	if _, err := NewFrameCoordinator(CoordinatorConfig{Workers: 1}, h.dev, h.queue, h.swap, nil,
		h.coord.targets, state, &gridScene{n: 5}, nil); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Errorf("more objects than slots: %v", err)
	}
	tableState := *state
	tableState.Binding = BindingDescriptorTable
	if _, err := NewFrameCoordinator(CoordinatorConfig{Workers: 1}, h.dev, h.queue, h.swap, nil,
		h.coord.targets, &tableState, &gridScene{n: 4}, nil); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Errorf("table binding without descriptors: %v", err)
	}
}

func TestParseBindingMode(t *testing.T) {
	for in, want := range map[string]BindingMode{
		"":                 BindingRootCBV,
		"root_cbv":         BindingRootCBV,
		"descriptor_table": BindingDescriptorTable,
	} {
		got, err := ParseBindingMode(in)
		if err != nil || got != want {
			t.Errorf("ParseBindingMode(%q) = %v, %v", in, got, err)
		}
		if in != "" && got.String() != in {
			t.Errorf("%v.String() = %q", got, got.String())
		}
	}
	if _, err := ParseBindingMode("push_constants"); err == nil {
		t.Errorf("accepted an unknown binding")
	}
}
