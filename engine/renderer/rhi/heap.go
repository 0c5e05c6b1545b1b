package rhi

import (
	"fmt"

	"github.com/spaghettifunk/novus/engine/math"
)

// Allocation is a sub-range handed out by a LinearResourceHeap.
type Allocation struct {
	Offset  uint64
	Size    uint64
	Address GPUAddress
	// Data is the CPU view of the range, nil for heaps the CPU cannot map.
	Data []byte
}

// LinearResourceHeap is a bump allocator over one committed buffer that
// stays mapped for the heap's lifetime. It is not safe for concurrent use.
type LinearResourceHeap struct {
	ResourceBase

	buffer   Buffer
	data     []byte
	base     GPUAddress
	capacity uint64
	offset   uint64
}

func NewLinearResourceHeap(device Device, size uint64, heapType HeapType, name string) (*LinearResourceHeap, error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: heap %s has zero size", ErrInvalidArgument, name)
	}
	buf, err := device.CreateBuffer(BufferDesc{
		Name:         name,
		Size:         size,
		HeapType:     heapType,
		InitialState: ResourceStateGenericRead,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: heap %s: %w", ErrDeviceResourceCreationFailed, name, err)
	}

	h := &LinearResourceHeap{
		buffer:   buf,
		base:     buf.GPUAddress(),
		capacity: size,
	}
	h.InitResource(ResourceKindHeap, name)

	if heapType.Mappable() {
		data, err := buf.Map()
		if err != nil {
			buf.Release()
			return nil, fmt.Errorf("%w: heap %s: %w", ErrDeviceResourceCreationFailed, name, err)
		}
		h.data = data
	}
	return h, nil
}

func (h *LinearResourceHeap) Size() uint64 {
	return h.capacity
}

func (h *LinearResourceHeap) Capacity() uint64 {
	return h.capacity
}

// Offset is the first byte not yet handed out.
func (h *LinearResourceHeap) Offset() uint64 {
	return h.offset
}

func (h *LinearResourceHeap) BaseAddress() GPUAddress {
	return h.base
}

func (h *LinearResourceHeap) Buffer() Buffer {
	return h.buffer
}

// Allocate reserves size bytes whose GPU address is a multiple of
// alignment. alignment must be a power of two; anything else panics.
func (h *LinearResourceHeap) Allocate(size, alignment uint64) (Allocation, error) {
	if !math.IsPowerOfTwo(alignment) {
		violation(ErrMisaligned, "heap %s: alignment %d", h.Name(), alignment)
	}
	aligned := math.AlignUp(uint64(h.base)+h.offset, alignment) - uint64(h.base)
	if aligned+size > h.capacity || aligned+size < aligned {
		return Allocation{}, fmt.Errorf("%w: heap %s: %d bytes at offset %d exceeds capacity %d",
			ErrOutOfSpace, h.Name(), size, aligned, h.capacity)
	}
	h.offset = aligned + size

	a := Allocation{
		Offset:  aligned,
		Size:    size,
		Address: h.base + GPUAddress(aligned),
	}
	if h.data != nil {
		a.Data = h.data[aligned : aligned+size : aligned+size]
	}
	return a, nil
}

// Clear forgets every allocation. Memory is not zeroed.
func (h *LinearResourceHeap) Clear() {
	h.offset = 0
}

func (h *LinearResourceHeap) Release() error {
	if h.buffer == nil {
		return nil
	}
	if h.data != nil {
		h.buffer.Unmap()
		h.data = nil
	}
	err := h.buffer.Release()
	h.buffer = nil
	return err
}
