// Package rhi is the backend-neutral rendering hardware interface: resource
// and command types every backend understands, plus the allocators built on
// top of them.
package rhi

import "fmt"

// GPUAddress is a device-visible virtual address.
type GPUAddress uint64

// CPUDescriptorHandle addresses one descriptor for CPU-side writes.
type CPUDescriptorHandle uint64

// GPUDescriptorHandle addresses one descriptor in a shader-visible table.
type GPUDescriptorHandle uint64

const (
	// ConstantBufferAlignment is the required alignment of constant buffer
	// views, both for their location and their size.
	ConstantBufferAlignment = 256
	// DefaultPlacementAlignment is the alignment of every committed buffer.
	DefaultPlacementAlignment = 64 << 10
)

type HeapType uint8

const (
	// HeapTypeDefault is device-local memory the CPU cannot map.
	HeapTypeDefault HeapType = iota
	// HeapTypeUpload is CPU-writable, GPU-readable memory.
	HeapTypeUpload
	// HeapTypeReadback is GPU-writable, CPU-readable memory.
	HeapTypeReadback
)

func (h HeapType) String() string {
	switch h {
	case HeapTypeDefault:
		return "default"
	case HeapTypeUpload:
		return "upload"
	case HeapTypeReadback:
		return "readback"
	}
	return fmt.Sprintf("HeapType(%d)", uint8(h))
}

// Mappable reports whether the CPU can map buffers placed in this heap.
func (h HeapType) Mappable() bool {
	return h == HeapTypeUpload || h == HeapTypeReadback
}

type DescriptorType uint8

const (
	DescriptorTypeCBVSRVUAV DescriptorType = iota
	DescriptorTypeSampler
	DescriptorTypeRTV
	DescriptorTypeDSV
)

func (d DescriptorType) String() string {
	switch d {
	case DescriptorTypeCBVSRVUAV:
		return "cbv_srv_uav"
	case DescriptorTypeSampler:
		return "sampler"
	case DescriptorTypeRTV:
		return "rtv"
	case DescriptorTypeDSV:
		return "dsv"
	}
	return fmt.Sprintf("DescriptorType(%d)", uint8(d))
}

// CanBeShaderVisible reports whether tables of this type may be bound to
// the pipeline.
func (d DescriptorType) CanBeShaderVisible() bool {
	return d == DescriptorTypeCBVSRVUAV || d == DescriptorTypeSampler
}

type ResourceState uint8

const (
	ResourceStateCommon ResourceState = iota
	ResourceStatePresent
	ResourceStateRenderTarget
	ResourceStateDepthWrite
	ResourceStateGenericRead
	ResourceStateCopyDest
	ResourceStateCopySource
)

func (s ResourceState) String() string {
	switch s {
	case ResourceStateCommon:
		return "common"
	case ResourceStatePresent:
		return "present"
	case ResourceStateRenderTarget:
		return "render_target"
	case ResourceStateDepthWrite:
		return "depth_write"
	case ResourceStateGenericRead:
		return "generic_read"
	case ResourceStateCopyDest:
		return "copy_dest"
	case ResourceStateCopySource:
		return "copy_source"
	}
	return fmt.Sprintf("ResourceState(%d)", uint8(s))
}

type ResourceKind uint8

const (
	ResourceKindBuffer ResourceKind = iota
	ResourceKindHeap
	ResourceKindDescriptorHeap
	ResourceKindTexture2D
	ResourceKindTexture2DArray
	ResourceKindTexture3D
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceKindBuffer:
		return "buffer"
	case ResourceKindHeap:
		return "heap"
	case ResourceKindDescriptorHeap:
		return "descriptor_heap"
	case ResourceKindTexture2D:
		return "texture2d"
	case ResourceKindTexture2DArray:
		return "texture2d_array"
	case ResourceKindTexture3D:
		return "texture3d"
	}
	return fmt.Sprintf("ResourceKind(%d)", uint8(k))
}

// IsTexture reports whether the kind is one of the texture variants.
func (k ResourceKind) IsTexture() bool {
	return k == ResourceKindTexture2D || k == ResourceKindTexture2DArray || k == ResourceKindTexture3D
}

type CommandListKind uint8

const (
	CommandListDirect CommandListKind = iota
	CommandListBundle
)

func (k CommandListKind) String() string {
	if k == CommandListBundle {
		return "bundle"
	}
	return "direct"
}

type PrimitiveTopology uint8

const (
	PrimitiveTopologyUndefined PrimitiveTopology = iota
	PrimitiveTopologyTriangleList
	PrimitiveTopologyLineList
	PrimitiveTopologyPointList
)

type Format uint8

const (
	FormatUnknown Format = iota
	FormatR8G8B8A8Unorm
	FormatD32Float
	FormatR32Uint
	FormatR32G32B32Float
)

func (f Format) String() string {
	switch f {
	case FormatR8G8B8A8Unorm:
		return "r8g8b8a8_unorm"
	case FormatD32Float:
		return "d32_float"
	case FormatR32Uint:
		return "r32_uint"
	case FormatR32G32B32Float:
		return "r32g32b32_float"
	}
	return "unknown"
}

// Size is the size of one element in bytes.
func (f Format) Size() uint32 {
	switch f {
	case FormatR8G8B8A8Unorm, FormatD32Float, FormatR32Uint:
		return 4
	case FormatR32G32B32Float:
		return 12
	}
	return 0
}
