package rhi

import "context"

// Buffer is a linear block of device memory.
type Buffer interface {
	Resource
	HeapType() HeapType
	GPUAddress() GPUAddress
	// Map returns the CPU view of the whole buffer. Upload and readback
	// buffers stay mapped until Unmap; the slice must not be used after it.
	Map() ([]byte, error)
	Unmap()
	Release() error
}

// Texture is an image resource. Its state is tracked by the device.
type Texture interface {
	Resource
	Width() uint32
	Height() uint32
	DepthOrArraySize() uint32
	Format() Format
	Release() error
}

// DescriptorTable is the backend storage behind a DescriptorHeap.
type DescriptorTable interface {
	Resource
	Type() DescriptorType
	Capacity() uint32
	ShaderVisible() bool
	CPUStart() CPUDescriptorHandle
	// GPUStart is zero for tables that are not shader visible.
	GPUStart() GPUDescriptorHandle
	Release() error
}

type RootSignature interface {
	Named
	Desc() RootSignatureDesc
}

type PipelineState interface {
	Named
	Desc() PipelineStateDesc
}

// Fence is a monotonically increasing counter signalled by a queue.
type Fence interface {
	Named
	Completed() uint64
	// Wait blocks until Completed() >= value. A cancelled or expired ctx,
	// or a lost device, is reported as ErrDeviceLost.
	Wait(ctx context.Context, value uint64) error
}

// Queue is the single submission point of a device. It must only be used
// from one goroutine at a time.
type Queue interface {
	ExecuteCommandLists(lists ...*CommandList) error
	Signal(fence Fence, value uint64) error
}

type SwapChain interface {
	BufferCount() uint32
	// CurrentIndex is the back buffer the next frame renders to.
	CurrentIndex() uint32
	Buffer(index uint32) (Texture, error)
	// Present queues the current back buffer for display and advances
	// CurrentIndex. The back buffer must be in ResourceStatePresent by the
	// time the queue reaches the present.
	Present(syncInterval uint32) error
	SetFullscreen(fullscreen bool) error
	Fullscreen() bool
	Close() error
}

// Device creates every other object. Methods are safe for concurrent use
// unless noted.
type Device interface {
	Name() string
	CreateBuffer(desc BufferDesc) (Buffer, error)
	CreateTexture(desc TextureDesc) (Texture, error)
	CreateDescriptorTable(desc DescriptorTableDesc) (DescriptorTable, error)
	DescriptorIncrementSize(t DescriptorType) uint32
	// CopyDescriptors copies count descriptors of type t from src to dst.
	CopyDescriptors(dst, src CPUDescriptorHandle, count uint32, t DescriptorType) error
	CreateConstantBufferView(desc ConstantBufferViewDesc, dst CPUDescriptorHandle) error
	CreateRenderTargetView(target Texture, dst CPUDescriptorHandle) error
	CreateDepthStencilView(target Texture, dst CPUDescriptorHandle) error
	CreateRootSignature(desc RootSignatureDesc) (RootSignature, error)
	CreatePipelineState(desc PipelineStateDesc) (PipelineState, error)
	CreateFence(initial uint64) (Fence, error)
	CreateSwapChain(desc SwapChainDesc) (SwapChain, error)
	Queue() Queue
	Close() error
}

type BufferDesc struct {
	Name         string
	Size         uint64
	HeapType     HeapType
	InitialState ResourceState
}

type TextureDesc struct {
	Name             string
	Kind             ResourceKind
	Width, Height    uint32
	DepthOrArraySize uint32
	Format           Format
	RenderTarget     bool
	DepthStencil     bool
	InitialState     ResourceState
}

type DescriptorTableDesc struct {
	Name          string
	Type          DescriptorType
	Capacity      uint32
	ShaderVisible bool
}

// ConstantBufferViewDesc describes a constant buffer. Location and Size
// must both be multiples of ConstantBufferAlignment.
type ConstantBufferViewDesc struct {
	Location GPUAddress
	Size     uint32
}

type VertexBufferView struct {
	Location GPUAddress
	Size     uint32
	Stride   uint32
}

type IndexBufferView struct {
	Location GPUAddress
	Size     uint32
	Format   Format
}

type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

type Rect struct {
	Left, Top, Right, Bottom int32
}

type RootParameterType uint8

const (
	// RootParameterCBV binds a constant buffer by GPU address.
	RootParameterCBV RootParameterType = iota
	// RootParameterDescriptorTable binds a range of a shader-visible table.
	RootParameterDescriptorTable
)

type RootParameter struct {
	Type           RootParameterType
	ShaderRegister uint32
	// NumDescriptors is the table range length. Ignored for root CBVs.
	NumDescriptors uint32
}

type RootSignatureDesc struct {
	Name             string
	Parameters       []RootParameter
	AllowInputLayout bool
}

type InputElement struct {
	Semantic string
	Format   Format
	Offset   uint32
}

type PipelineStateDesc struct {
	Name          string
	RootSignature RootSignature
	// Shader bytecode is passed through to the backend untouched.
	VS, PS       []byte
	InputLayout  []InputElement
	Topology     PrimitiveTopology
	RTVFormat    Format
	DSVFormat    Format
	DepthEnabled bool
}

type SwapChainDesc struct {
	Name string
	// Window is the native surface handle, zero when rendering off-screen.
	Window      uintptr
	Width       uint32
	Height      uint32
	BufferCount uint32
	Format      Format
}
