package software

import (
	"fmt"

	"github.com/spaghettifunk/novus/engine/math"
	"github.com/spaghettifunk/novus/engine/renderer/rhi"
)

type rootBinding struct {
	set   bool
	addr  rhi.GPUAddress
	table rhi.GPUDescriptorHandle
}

// drawState is the pipeline state accumulated while replaying one list.
type drawState struct {
	pso      *pipelineState
	root     *rootSignature
	bindings []rootBinding
	heaps    []*table
	viewport rhi.Viewport
	scissor  rhi.Rect
	hasScis  bool
	rtv      *texture
	dsv      *texture
	topology rhi.PrimitiveTopology
	vb       rhi.VertexBufferView
	ib       rhi.IndexBufferView
}

// executor replays recorded commands, validating them the way a debug
// layer would. The first invalid command loses the device.
type executor struct {
	dev *Device
}

func newExecutor(dev *Device) *executor {
	return &executor{dev: dev}
}

func (e *executor) run(cl *rhi.CommandList) error {
	if !cl.Valid() {
		return fmt.Errorf("%w: %s", rhi.ErrStaleCommandList, cl.Name())
	}
	var st drawState
	return e.replay(&st, cl, false)
}

func (e *executor) replay(st *drawState, cl *rhi.CommandList, inBundle bool) error {
	for i := range cl.Commands() {
		c := &cl.Commands()[i]
		if err := e.execute(st, c, inBundle); err != nil {
			return fmt.Errorf("command %d (%s): %w", i, c.Op, err)
		}
	}
	return nil
}

func (e *executor) execute(st *drawState, c *rhi.Command, inBundle bool) error {
	switch c.Op {
	case rhi.OpSetPipelineState:
		pso, ok := c.Ref.(*pipelineState)
		if !ok {
			return fmt.Errorf("%w: foreign pipeline state", rhi.ErrInvalidArgument)
		}
		st.pso = pso

	case rhi.OpSetRootSignature:
		rs, ok := c.Ref.(*rootSignature)
		if !ok {
			return fmt.Errorf("%w: foreign root signature", rhi.ErrInvalidArgument)
		}
		if st.root != rs {
			st.root = rs
			st.bindings = make([]rootBinding, len(rs.desc.Parameters))
		}

	case rhi.OpSetViewport:
		st.viewport = c.Viewport

	case rhi.OpSetScissor:
		st.scissor = c.Scissor
		st.hasScis = true

	case rhi.OpResourceBarrier:
		return e.barrier(c.Barrier)

	case rhi.OpClearRenderTarget:
		t, err := e.target(c.Target, rhi.DescriptorTypeRTV, rhi.ResourceStateRenderTarget)
		if err != nil {
			return err
		}
		t.clearColor(c.Color)

	case rhi.OpClearDepthStencil:
		t, err := e.target(c.Depth, rhi.DescriptorTypeDSV, rhi.ResourceStateDepthWrite)
		if err != nil {
			return err
		}
		t.clearDepth(c.ClearDepth)

	case rhi.OpSetRenderTargets:
		rt, err := e.target(c.Target, rhi.DescriptorTypeRTV, rhi.ResourceStateRenderTarget)
		if err != nil {
			return err
		}
		st.rtv = rt
		st.dsv = nil
		if c.Depth != 0 {
			ds, err := e.target(c.Depth, rhi.DescriptorTypeDSV, rhi.ResourceStateDepthWrite)
			if err != nil {
				return err
			}
			st.dsv = ds
		}

	case rhi.OpSetDescriptorHeaps:
		tables, _ := c.Ref.([]rhi.DescriptorTable)
		heaps := make([]*table, 0, len(tables))
		for _, dt := range tables {
			t, ok := dt.(*table)
			if !ok || t.released {
				return fmt.Errorf("%w: descriptor heap is not live on this device", rhi.ErrInvalidArgument)
			}
			if !t.visible {
				return fmt.Errorf("%w: %s", rhi.ErrNotShaderVisible, t.Name())
			}
			heaps = append(heaps, t)
		}
		st.heaps = heaps

	case rhi.OpSetRootConstantBufferView:
		if err := e.checkRoot(st, c.Root, rhi.RootParameterCBV); err != nil {
			return err
		}
		if uint64(c.Address)%rhi.ConstantBufferAlignment != 0 {
			return fmt.Errorf("%w: constant buffer at %#x", rhi.ErrInvalidArgument, uint64(c.Address))
		}
		st.bindings[c.Root] = rootBinding{set: true, addr: c.Address}

	case rhi.OpSetRootDescriptorTable:
		if err := e.checkRoot(st, c.Root, rhi.RootParameterDescriptorTable); err != nil {
			return err
		}
		if uint64(c.Table)&gpuHandleBit == 0 {
			return fmt.Errorf("%w: %#x is not a shader-visible handle", rhi.ErrNotShaderVisible, uint64(c.Table))
		}
		t, _, err := e.dev.lookup(uint64(c.Table), rhi.DescriptorTypeCBVSRVUAV)
		if err != nil {
			return err
		}
		bound := false
		for _, h := range st.heaps {
			bound = bound || h == t
		}
		if !bound {
			return fmt.Errorf("%w: table %s is not bound with SetDescriptorHeaps", rhi.ErrInvalidArgument, t.Name())
		}
		st.bindings[c.Root] = rootBinding{set: true, table: c.Table}

	case rhi.OpSetPrimitiveTopology:
		st.topology = c.Topology

	case rhi.OpSetVertexBuffer:
		st.vb = c.Vertex

	case rhi.OpSetIndexBuffer:
		st.ib = c.Index

	case rhi.OpDrawIndexedInstanced:
		return e.draw(st, c.Draw)

	case rhi.OpExecuteBundle:
		if inBundle {
			return fmt.Errorf("%w: nested bundle", rhi.ErrBundleCommand)
		}
		bundle, ok := c.Ref.(*rhi.CommandList)
		if !ok || !bundle.Valid() {
			return fmt.Errorf("%w: bundle", rhi.ErrStaleCommandList)
		}
		return e.replay(st, bundle, true)

	default:
		return fmt.Errorf("%w: unknown opcode %s", rhi.ErrInvalidArgument, c.Op)
	}
	return nil
}

func (e *executor) checkRoot(st *drawState, root uint32, want rhi.RootParameterType) error {
	if st.root == nil {
		return fmt.Errorf("%w: no root signature set", rhi.ErrInvalidListState)
	}
	params := st.root.desc.Parameters
	if int(root) >= len(params) {
		return fmt.Errorf("%w: root parameter %d of %d", rhi.ErrIndexOutOfRange, root, len(params))
	}
	if params[root].Type != want {
		return fmt.Errorf("%w: root parameter %d has a different type", rhi.ErrInvalidArgument, root)
	}
	return nil
}

func (e *executor) barrier(b rhi.Barrier) error {
	t, ok := b.Resource.(*texture)
	if !ok {
		// Buffers are not state tracked.
		if _, isBuf := b.Resource.(*buffer); isBuf {
			return nil
		}
		return fmt.Errorf("%w: barrier on a resource from another device", rhi.ErrInvalidArgument)
	}
	if t.released {
		return fmt.Errorf("%w: %s", rhi.ErrReleased, t.Name())
	}
	if t.state != b.Before {
		return fmt.Errorf("%w: barrier on %s expects %s but it is %s", rhi.ErrInvalidArgument, t.Name(), b.Before, t.state)
	}
	t.state = b.After
	return nil
}

func (e *executor) target(h rhi.CPUDescriptorHandle, typ rhi.DescriptorType, state rhi.ResourceState) (*texture, error) {
	tbl, i, err := e.dev.lookup(uint64(h), typ)
	if err != nil {
		return nil, err
	}
	d := tbl.slots[i]
	if d.target == nil || d.target.released {
		return nil, fmt.Errorf("%w: %s descriptor %d is empty", rhi.ErrInvalidArgument, typ, i)
	}
	if d.target.state != state {
		return nil, fmt.Errorf("%w: %s is %s, want %s", rhi.ErrInvalidArgument, d.target.Name(), d.target.state, state)
	}
	return d.target, nil
}

// constants resolves the first 64 bytes bound at root parameter 0.
func (e *executor) constants(st *drawState) (math.Mat4, error) {
	if st.root == nil || len(st.bindings) == 0 || !st.bindings[0].set {
		return math.Mat4{}, fmt.Errorf("%w: root parameter 0 is not bound", rhi.ErrInvalidListState)
	}
	b := st.bindings[0]
	addr := b.addr
	if st.root.desc.Parameters[0].Type == rhi.RootParameterDescriptorTable {
		tbl, i, err := e.dev.lookup(uint64(b.table), rhi.DescriptorTypeCBVSRVUAV)
		if err != nil {
			return math.Mat4{}, err
		}
		d := tbl.slots[i]
		if d.kind != viewCBV {
			return math.Mat4{}, fmt.Errorf("%w: descriptor %d in %s is not a constant buffer view", rhi.ErrInvalidArgument, i, tbl.Name())
		}
		addr = d.cbv.Location
	}
	data, err := e.dev.mem.resolve(addr, math.Mat4Size)
	if err != nil {
		return math.Mat4{}, err
	}
	return math.Mat4FromBytes(data), nil
}
