package rhi

import (
	"fmt"

	"github.com/spaghettifunk/novus/engine/math"
)

// SlottedBufferPool is an upload buffer split into equally sized slots,
// each padded to ConstantBufferAlignment. The buffer is mapped once at
// creation and stays mapped until Release.
//
// Distinct slots never alias, so goroutines writing disjoint slot ranges
// need no locking.
type SlottedBufferPool struct {
	ResourceBase

	buffer    Buffer
	data      []byte
	base      GPUAddress
	slotSize  uint64
	stride    uint64
	slotCount uint32
}

func NewSlottedBufferPool(device Device, slotCount uint32, slotSize uint64, name string) (*SlottedBufferPool, error) {
	if slotCount == 0 || slotSize == 0 {
		return nil, fmt.Errorf("%w: buffer pool %s: %d slots of %d bytes", ErrInvalidArgument, name, slotCount, slotSize)
	}
	stride := math.AlignUp(slotSize, uint64(ConstantBufferAlignment))

	buf, err := device.CreateBuffer(BufferDesc{
		Name:         name,
		Size:         stride * uint64(slotCount),
		HeapType:     HeapTypeUpload,
		InitialState: ResourceStateGenericRead,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: buffer pool %s: %w", ErrDeviceResourceCreationFailed, name, err)
	}
	data, err := buf.Map()
	if err != nil {
		buf.Release()
		return nil, fmt.Errorf("%w: buffer pool %s: %w", ErrDeviceResourceCreationFailed, name, err)
	}

	p := &SlottedBufferPool{
		buffer:    buf,
		data:      data,
		base:      buf.GPUAddress(),
		slotSize:  slotSize,
		stride:    stride,
		slotCount: slotCount,
	}
	p.InitResource(ResourceKindBuffer, name)
	return p, nil
}

func (p *SlottedBufferPool) Size() uint64 {
	return p.PoolSize()
}

// SlotSize is the logical size of a slot as requested at creation.
func (p *SlottedBufferPool) SlotSize() uint64 {
	return p.slotSize
}

// AlignedStride is the distance between consecutive slots.
func (p *SlottedBufferPool) AlignedStride() uint64 {
	return p.stride
}

func (p *SlottedBufferPool) SlotCount() uint32 {
	return p.slotCount
}

func (p *SlottedBufferPool) PoolSize() uint64 {
	return p.stride * uint64(p.slotCount)
}

func (p *SlottedBufferPool) BaseAddress() GPUAddress {
	return p.base
}

func (p *SlottedBufferPool) Buffer() Buffer {
	return p.buffer
}

func (p *SlottedBufferPool) check(slot uint32) {
	if slot >= p.slotCount {
		violation(ErrIndexOutOfRange, "buffer pool %s: slot %d, count %d", p.Name(), slot, p.slotCount)
	}
	if p.data == nil {
		violation(ErrReleased, "buffer pool %s", p.Name())
	}
}

// Map returns the CPU view of slot, SlotSize bytes long.
func (p *SlottedBufferPool) Map(slot uint32) []byte {
	p.check(slot)
	off := uint64(slot) * p.stride
	return p.data[off : off+p.slotSize : off+p.slotSize]
}

// Unmap ends a write started by Map. The pool stays mapped, so this only
// validates the slot.
func (p *SlottedBufferPool) Unmap(slot uint32) {
	p.check(slot)
}

// GPUHandle is the device address of slot, suitable for a root constant
// buffer binding.
func (p *SlottedBufferPool) GPUHandle(slot uint32) GPUAddress {
	if slot >= p.slotCount {
		violation(ErrIndexOutOfRange, "buffer pool %s: slot %d, count %d", p.Name(), slot, p.slotCount)
	}
	return p.base + GPUAddress(uint64(slot)*p.stride)
}

// ViewDesc describes slot as a constant buffer view.
func (p *SlottedBufferPool) ViewDesc(slot uint32) ConstantBufferViewDesc {
	return ConstantBufferViewDesc{Location: p.GPUHandle(slot), Size: uint32(p.stride)}
}

func (p *SlottedBufferPool) Release() error {
	if p.buffer == nil {
		return nil
	}
	p.buffer.Unmap()
	p.data = nil
	err := p.buffer.Release()
	p.buffer = nil
	return err
}
