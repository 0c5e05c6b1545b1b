package rhi

import (
	"fmt"
	"sync/atomic"
)

type Opcode uint8

const (
	OpSetPipelineState Opcode = iota + 1
	OpSetRootSignature
	OpSetViewport
	OpSetScissor
	OpResourceBarrier
	OpClearRenderTarget
	OpClearDepthStencil
	OpSetRenderTargets
	OpSetDescriptorHeaps
	OpSetRootConstantBufferView
	OpSetRootDescriptorTable
	OpSetPrimitiveTopology
	OpSetVertexBuffer
	OpSetIndexBuffer
	OpDrawIndexedInstanced
	OpExecuteBundle
)

var opcodeNames = map[Opcode]string{
	OpSetPipelineState:          "SetPipelineState",
	OpSetRootSignature:          "SetRootSignature",
	OpSetViewport:               "SetViewport",
	OpSetScissor:                "SetScissor",
	OpResourceBarrier:           "ResourceBarrier",
	OpClearRenderTarget:         "ClearRenderTarget",
	OpClearDepthStencil:         "ClearDepthStencil",
	OpSetRenderTargets:          "SetRenderTargets",
	OpSetDescriptorHeaps:        "SetDescriptorHeaps",
	OpSetRootConstantBufferView: "SetRootConstantBufferView",
	OpSetRootDescriptorTable:    "SetRootDescriptorTable",
	OpSetPrimitiveTopology:      "SetPrimitiveTopology",
	OpSetVertexBuffer:           "SetVertexBuffer",
	OpSetIndexBuffer:            "SetIndexBuffer",
	OpDrawIndexedInstanced:      "DrawIndexedInstanced",
	OpExecuteBundle:             "ExecuteBundle",
}

func (o Opcode) String() string {
	if n, ok := opcodeNames[o]; ok {
		return n
	}
	return fmt.Sprintf("Opcode(%d)", uint8(o))
}

// Barrier is a resource state transition.
type Barrier struct {
	Resource Resource
	Before   ResourceState
	After    ResourceState
}

type DrawArgs struct {
	IndexCount    uint32
	InstanceCount uint32
	StartIndex    uint32
	BaseVertex    int32
	StartInstance uint32
}

// Command is one recorded operation. Only the fields relevant to Op are
// set; object references travel in Ref.
type Command struct {
	Op Opcode

	Root       uint32
	Address    GPUAddress
	Table      GPUDescriptorHandle
	Target     CPUDescriptorHandle
	Depth      CPUDescriptorHandle
	Color      [4]float32
	ClearDepth float32

	Barrier  Barrier
	Viewport Viewport
	Scissor  Rect
	Vertex   VertexBufferView
	Index    IndexBufferView
	Topology PrimitiveTopology
	Draw     DrawArgs

	// Ref is a PipelineState, RootSignature, []DescriptorTable or a bundle
	// *CommandList depending on Op.
	Ref interface{}
}

// CommandAllocator owns the storage commands are recorded into. It is not
// safe for concurrent use; each recording goroutine owns its own.
type CommandAllocator struct {
	name       string
	kind       CommandListKind
	inFlight   atomic.Int32
	generation atomic.Uint64

	blocks [][]Command
	free   [][]Command
}

func NewCommandAllocator(kind CommandListKind, name string) *CommandAllocator {
	return &CommandAllocator{kind: kind, name: name}
}

func (a *CommandAllocator) Name() string { return a.name }
func (a *CommandAllocator) SetName(name string) { a.name = name }
func (a *CommandAllocator) Kind() CommandListKind { return a.kind }

// InFlight is the number of lists from this allocator that are recording
// or submitted and not yet executed.
func (a *CommandAllocator) InFlight() int {
	return int(a.inFlight.Load())
}

// Reset reclaims the storage of every list recorded from this allocator.
// Those lists become invalid. Reset fails while any of them is still
// recording or waiting for the queue.
func (a *CommandAllocator) Reset() error {
	if n := a.inFlight.Load(); n > 0 {
		return fmt.Errorf("%w: %s has %d lists in flight", ErrAllocatorInUse, a.name, n)
	}
	for _, b := range a.blocks {
		clear(b[:cap(b)])
		a.free = append(a.free, b[:0])
	}
	a.blocks = a.blocks[:0]
	a.generation.Add(1)
	return nil
}

func (a *CommandAllocator) acquire() []Command {
	if n := len(a.free); n > 0 {
		b := a.free[n-1]
		a.free = a.free[:n-1]
		return b
	}
	return make([]Command, 0, 64)
}

func (a *CommandAllocator) retain(cmds []Command) {
	a.blocks = append(a.blocks, cmds)
}

type CommandListState uint32

const (
	CommandListNotAllocated CommandListState = iota
	CommandListReady
	CommandListRecording
	CommandListClosed
	CommandListSubmitted
	CommandListExecuted
)

func (s CommandListState) String() string {
	switch s {
	case CommandListNotAllocated:
		return "not_allocated"
	case CommandListReady:
		return "ready"
	case CommandListRecording:
		return "recording"
	case CommandListClosed:
		return "closed"
	case CommandListSubmitted:
		return "submitted"
	case CommandListExecuted:
		return "executed"
	}
	return fmt.Sprintf("CommandListState(%d)", uint32(s))
}

// CommandList records commands for one goroutine. Recording methods panic
// when the list is not recording or when a bundle records a command that
// bundles may not contain.
type CommandList struct {
	name       string
	kind       CommandListKind
	state      atomic.Uint32
	allocator  *CommandAllocator
	generation uint64
	cmds       []Command
	draws      int
}

func NewCommandList(kind CommandListKind, name string) *CommandList {
	cl := &CommandList{kind: kind, name: name}
	cl.state.Store(uint32(CommandListReady))
	return cl
}

func (cl *CommandList) Name() string { return cl.name }
func (cl *CommandList) SetName(name string) { cl.name = name }
func (cl *CommandList) Kind() CommandListKind { return cl.kind }

func (cl *CommandList) State() CommandListState {
	return CommandListState(cl.state.Load())
}

// Commands returns the recorded commands. The slice is owned by the
// allocator and is only valid until it is reset.
func (cl *CommandList) Commands() []Command {
	return cl.cmds
}

// DrawCount is the number of draws recorded directly into this list.
func (cl *CommandList) DrawCount() int {
	return cl.draws
}

// Valid reports whether the list's storage still belongs to it.
func (cl *CommandList) Valid() bool {
	return cl.allocator != nil && cl.generation == cl.allocator.generation.Load()
}

// Reset starts a new recording into storage from alloc. pso, if not nil,
// becomes the initial pipeline state.
func (cl *CommandList) Reset(alloc *CommandAllocator, pso PipelineState) error {
	switch s := cl.State(); s {
	case CommandListReady, CommandListClosed, CommandListExecuted:
	default:
		return fmt.Errorf("%w: cannot reset %s while %s", ErrInvalidListState, cl.name, s)
	}
	if alloc == nil || alloc.kind != cl.kind {
		return fmt.Errorf("%w: %s list needs a %s allocator", ErrInvalidArgument, cl.kind, cl.kind)
	}

	cl.allocator = alloc
	cl.generation = alloc.generation.Load()
	cl.cmds = alloc.acquire()
	cl.draws = 0
	alloc.inFlight.Add(1)
	cl.state.Store(uint32(CommandListRecording))

	if pso != nil {
		cl.SetPipelineState(pso)
	}
	return nil
}

// Close ends recording.
func (cl *CommandList) Close() error {
	if s := cl.State(); s != CommandListRecording {
		return fmt.Errorf("%w: cannot close %s while %s", ErrInvalidListState, cl.name, s)
	}
	cl.allocator.retain(cl.cmds)
	cl.allocator.inFlight.Add(-1)
	cl.state.Store(uint32(CommandListClosed))
	return nil
}

// MarkSubmitted is called by a queue when it accepts the list.
func (cl *CommandList) MarkSubmitted() error {
	if cl.kind != CommandListDirect {
		return fmt.Errorf("%w: bundles cannot be submitted to a queue", ErrInvalidArgument)
	}
	if s := cl.State(); s != CommandListClosed {
		return fmt.Errorf("%w: cannot submit %s while %s", ErrInvalidListState, cl.name, s)
	}
	if !cl.Valid() {
		return fmt.Errorf("%w: %s", ErrStaleCommandList, cl.name)
	}
	cl.allocator.inFlight.Add(1)
	cl.state.Store(uint32(CommandListSubmitted))
	return nil
}

// MarkExecuted is called by a queue once the list has been consumed.
func (cl *CommandList) MarkExecuted() {
	if cl.state.CompareAndSwap(uint32(CommandListSubmitted), uint32(CommandListExecuted)) {
		cl.allocator.inFlight.Add(-1)
	}
}

func (cl *CommandList) record(c Command) {
	if s := cl.State(); s != CommandListRecording {
		violation(ErrInvalidListState, "%s on %s while %s", c.Op, cl.name, s)
	}
	cl.cmds = append(cl.cmds, c)
}

func (cl *CommandList) directOnly(op Opcode) {
	if cl.kind == CommandListBundle {
		violation(ErrBundleCommand, "%s in bundle %s", op, cl.name)
	}
}

func (cl *CommandList) SetPipelineState(pso PipelineState) {
	cl.record(Command{Op: OpSetPipelineState, Ref: pso})
}

func (cl *CommandList) SetGraphicsRootSignature(rs RootSignature) {
	cl.record(Command{Op: OpSetRootSignature, Ref: rs})
}

func (cl *CommandList) SetViewport(vp Viewport) {
	cl.directOnly(OpSetViewport)
	cl.record(Command{Op: OpSetViewport, Viewport: vp})
}

func (cl *CommandList) SetScissorRect(r Rect) {
	cl.directOnly(OpSetScissor)
	cl.record(Command{Op: OpSetScissor, Scissor: r})
}

func (cl *CommandList) ResourceBarrier(r Resource, before, after ResourceState) {
	cl.directOnly(OpResourceBarrier)
	cl.record(Command{Op: OpResourceBarrier, Barrier: Barrier{Resource: r, Before: before, After: after}})
}

func (cl *CommandList) ClearRenderTargetView(rtv CPUDescriptorHandle, color [4]float32) {
	cl.directOnly(OpClearRenderTarget)
	cl.record(Command{Op: OpClearRenderTarget, Target: rtv, Color: color})
}

func (cl *CommandList) ClearDepthStencilView(dsv CPUDescriptorHandle, depth float32) {
	cl.directOnly(OpClearDepthStencil)
	cl.record(Command{Op: OpClearDepthStencil, Depth: dsv, ClearDepth: depth})
}

// SetRenderTargets binds one render target and an optional depth target
// (zero for none).
func (cl *CommandList) SetRenderTargets(rtv, dsv CPUDescriptorHandle) {
	cl.directOnly(OpSetRenderTargets)
	cl.record(Command{Op: OpSetRenderTargets, Target: rtv, Depth: dsv})
}

func (cl *CommandList) SetDescriptorHeaps(tables ...DescriptorTable) {
	cl.record(Command{Op: OpSetDescriptorHeaps, Ref: tables})
}

func (cl *CommandList) SetGraphicsRootConstantBufferView(root uint32, addr GPUAddress) {
	cl.record(Command{Op: OpSetRootConstantBufferView, Root: root, Address: addr})
}

func (cl *CommandList) SetGraphicsRootDescriptorTable(root uint32, table GPUDescriptorHandle) {
	cl.record(Command{Op: OpSetRootDescriptorTable, Root: root, Table: table})
}

func (cl *CommandList) SetPrimitiveTopology(t PrimitiveTopology) {
	cl.record(Command{Op: OpSetPrimitiveTopology, Topology: t})
}

func (cl *CommandList) SetVertexBuffer(v VertexBufferView) {
	cl.record(Command{Op: OpSetVertexBuffer, Vertex: v})
}

func (cl *CommandList) SetIndexBuffer(v IndexBufferView) {
	cl.record(Command{Op: OpSetIndexBuffer, Index: v})
}

func (cl *CommandList) DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	cl.record(Command{Op: OpDrawIndexedInstanced, Draw: DrawArgs{
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		StartIndex:    startIndex,
		BaseVertex:    baseVertex,
		StartInstance: startInstance,
	}})
	cl.draws++
}

// ExecuteBundle replays a closed bundle at this point of the list.
func (cl *CommandList) ExecuteBundle(bundle *CommandList) {
	cl.directOnly(OpExecuteBundle)
	if bundle == nil || bundle.kind != CommandListBundle {
		violation(ErrInvalidArgument, "ExecuteBundle on %s needs a bundle", cl.name)
	}
	if s := bundle.State(); s != CommandListClosed {
		violation(ErrInvalidListState, "bundle %s is %s", bundle.name, s)
	}
	cl.record(Command{Op: OpExecuteBundle, Ref: bundle})
}
