package rhi

import "fmt"

// DescriptorHeap is a fixed-capacity table of descriptors of one type.
//
// Resize recreates the backing table. Every handle obtained before a
// resize is invalid afterwards; Generation changes on each resize so
// callers can tell.
type DescriptorHeap struct {
	ResourceBase

	device        Device
	table         DescriptorTable
	typ           DescriptorType
	shaderVisible bool
	capacity      uint32
	used          uint32
	stride        uint32
	cpuStart      CPUDescriptorHandle
	gpuStart      GPUDescriptorHandle
	generation    uint64
}

func NewDescriptorHeap(device Device, capacity uint32, typ DescriptorType, shaderVisible bool, name string) (*DescriptorHeap, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("%w: descriptor heap %s has zero capacity", ErrInvalidArgument, name)
	}
	if shaderVisible && !typ.CanBeShaderVisible() {
		return nil, fmt.Errorf("%w: %s descriptor heaps cannot be shader visible", ErrInvalidArgument, typ)
	}
	h := &DescriptorHeap{
		device:        device,
		typ:           typ,
		shaderVisible: shaderVisible,
		stride:        device.DescriptorIncrementSize(typ),
	}
	h.InitResource(ResourceKindDescriptorHeap, name)

	table, err := h.createTable(capacity)
	if err != nil {
		return nil, err
	}
	h.setTable(table)
	return h, nil
}

func (h *DescriptorHeap) createTable(capacity uint32) (DescriptorTable, error) {
	table, err := h.device.CreateDescriptorTable(DescriptorTableDesc{
		Name:          h.Name(),
		Type:          h.typ,
		Capacity:      capacity,
		ShaderVisible: h.shaderVisible,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: descriptor heap %s: %w", ErrDeviceResourceCreationFailed, h.Name(), err)
	}
	return table, nil
}

func (h *DescriptorHeap) setTable(table DescriptorTable) {
	h.table = table
	h.capacity = table.Capacity()
	h.cpuStart = table.CPUStart()
	h.gpuStart = table.GPUStart()
}

func (h *DescriptorHeap) Size() uint64 {
	return uint64(h.capacity) * uint64(h.stride)
}

func (h *DescriptorHeap) Type() DescriptorType {
	return h.typ
}

func (h *DescriptorHeap) ShaderVisible() bool {
	return h.shaderVisible
}

func (h *DescriptorHeap) Capacity() uint32 {
	return h.capacity
}

// Used is the number of descriptors handed out by Reserve.
func (h *DescriptorHeap) Used() uint32 {
	return h.used
}

func (h *DescriptorHeap) Stride() uint32 {
	return h.stride
}

func (h *DescriptorHeap) Generation() uint64 {
	return h.generation
}

// Table is the backing table, for binding with SetDescriptorHeaps.
func (h *DescriptorHeap) Table() DescriptorTable {
	return h.table
}

// Reserve hands out n consecutive descriptor indices.
func (h *DescriptorHeap) Reserve(n uint32) (uint32, error) {
	if uint64(h.used)+uint64(n) > uint64(h.capacity) {
		return 0, fmt.Errorf("%w: descriptor heap %s: %d used, %d requested, capacity %d",
			ErrOutOfSpace, h.Name(), h.used, n, h.capacity)
	}
	first := h.used
	h.used += n
	return first, nil
}

// CPUHandle returns the handle of descriptor index. Out of range indices
// panic.
func (h *DescriptorHeap) CPUHandle(index uint32) CPUDescriptorHandle {
	if index >= h.capacity {
		violation(ErrIndexOutOfRange, "descriptor heap %s: index %d, capacity %d", h.Name(), index, h.capacity)
	}
	return h.cpuStart + CPUDescriptorHandle(index)*CPUDescriptorHandle(h.stride)
}

// GPUDescriptorHandle returns the shader-visible handle of descriptor
// index. It panics for heaps that are not shader visible.
func (h *DescriptorHeap) GPUDescriptorHandle(index uint32) GPUDescriptorHandle {
	if !h.shaderVisible {
		violation(ErrNotShaderVisible, "descriptor heap %s", h.Name())
	}
	if index >= h.capacity {
		violation(ErrIndexOutOfRange, "descriptor heap %s: index %d, capacity %d", h.Name(), index, h.capacity)
	}
	return h.gpuStart + GPUDescriptorHandle(index)*GPUDescriptorHandle(h.stride)
}

// Resize recreates the heap with room for capacity descriptors. A heap that
// is not shader visible keeps its used descriptors; a shader-visible heap
// cannot be read back, so it comes back empty. It must not run while any
// recording or submitted command list references the heap.
func (h *DescriptorHeap) Resize(capacity uint32) error {
	if capacity < h.used {
		return fmt.Errorf("%w: descriptor heap %s: %d used, asked for %d", ErrShrinkBelowUsage, h.Name(), h.used, capacity)
	}
	if capacity == 0 {
		return fmt.Errorf("%w: descriptor heap %s: zero capacity", ErrInvalidArgument, h.Name())
	}

	table, err := h.createTable(capacity)
	if err != nil {
		return err
	}

	if h.shaderVisible {
		h.used = 0
	} else if h.used > 0 {
		if err := h.device.CopyDescriptors(table.CPUStart(), h.cpuStart, h.used, h.typ); err != nil {
			table.Release()
			return fmt.Errorf("descriptor heap %s: preserving descriptors: %w", h.Name(), err)
		}
	}

	old := h.table
	h.setTable(table)
	h.generation++
	return old.Release()
}

// CopyFrom makes h a copy of src. src must hold the same descriptor type
// and must not be shader visible. h grows first if it is too small.
func (h *DescriptorHeap) CopyFrom(src *DescriptorHeap) error {
	if src == h {
		return nil
	}
	if src.typ != h.typ {
		return fmt.Errorf("%w: copying %s into %s", ErrDescriptorTypeMismatch, src.typ, h.typ)
	}
	if src.shaderVisible {
		return fmt.Errorf("%w: %s", ErrShaderVisibleSource, src.Name())
	}
	if h.capacity < src.capacity {
		if err := h.Resize(src.capacity); err != nil {
			return err
		}
	}
	if err := h.device.CopyDescriptors(h.cpuStart, src.cpuStart, src.capacity, h.typ); err != nil {
		return fmt.Errorf("descriptor heap %s: copy from %s: %w", h.Name(), src.Name(), err)
	}
	h.used = src.used
	return nil
}

func (h *DescriptorHeap) Release() error {
	if h.table == nil {
		return nil
	}
	err := h.table.Release()
	h.table = nil
	h.capacity = 0
	h.used = 0
	return err
}
