package rhi_test

import (
	"bytes"
	"testing"

	"github.com/spaghettifunk/novus/engine/renderer/rhi"
)

func TestSlottedBufferPoolLayout(t *testing.T) {
	dev := newDevice(t)
	pool, err := rhi.NewSlottedBufferPool(dev, 4, 192, "objects")
	if err != nil {
		t.Fatalf("NewSlottedBufferPool: %v", err)
	}
	defer pool.Release()

	if pool.AlignedStride() != 256 {
		t.Errorf("stride = %d, want 256", pool.AlignedStride())
	}
	if pool.PoolSize() != 1024 {
		t.Errorf("pool size = %d, want 1024", pool.PoolSize())
	}
	if pool.SlotSize() != 192 || pool.SlotCount() != 4 {
		t.Errorf("slot size/count = %d/%d", pool.SlotSize(), pool.SlotCount())
	}

	payload := bytes.Repeat([]byte{0x5a}, 64)
	dst := pool.Map(2)
	copy(dst, payload)
	pool.Unmap(2)

	for _, slot := range []uint32{0, 1, 3} {
		if got := pool.Map(slot); !bytes.Equal(got, make([]byte, 192)) {
			t.Errorf("slot %d was modified", slot)
		}
		pool.Unmap(slot)
	}
	if got := pool.Map(2); !bytes.Equal(got[:64], payload) || got[64] != 0 {
		t.Errorf("slot 2 does not hold the payload")
	}
	if got, want := pool.GPUHandle(2), pool.BaseAddress()+512; got != want {
		t.Errorf("GPUHandle(2) = %#x, want %#x", got, want)
	}
}

func TestSlottedBufferPoolDisjointSlots(t *testing.T) {
	dev := newDevice(t)
	for _, size := range []uint64{1, 64, 255, 256, 257, 600} {
		pool, err := rhi.NewSlottedBufferPool(dev, 9, size, "pool")
		if err != nil {
			t.Fatalf("NewSlottedBufferPool(%d): %v", size, err)
		}
		stride := pool.AlignedStride()
		if stride < size || stride%rhi.ConstantBufferAlignment != 0 {
			t.Errorf("size %d: stride %d", size, stride)
		}
		for i := uint32(0); i < pool.SlotCount(); i++ {
			if got, want := uint64(pool.GPUHandle(i)-pool.GPUHandle(0)), uint64(i)*stride; got != want {
				t.Errorf("size %d: slot %d offset %d, want %d", size, i, got, want)
			}
			if uint64(len(pool.Map(i))) != size {
				t.Errorf("size %d: Map(%d) length %d", size, i, len(pool.Map(i)))
			}
		}
		pool.Release()
	}
}

func TestSlottedBufferPoolOutOfRange(t *testing.T) {
	dev := newDevice(t)
	pool, err := rhi.NewSlottedBufferPool(dev, 2, 64, "pool")
	if err != nil {
		t.Fatalf("NewSlottedBufferPool: %v", err)
	}
	expectPanic(t, rhi.ErrIndexOutOfRange, func() { pool.Map(2) })
	expectPanic(t, rhi.ErrIndexOutOfRange, func() { pool.GPUHandle(5) })
	expectPanic(t, rhi.ErrIndexOutOfRange, func() { pool.Unmap(2) })

	pool.Release()
	expectPanic(t, rhi.ErrReleased, func() { pool.Map(0) })
}

func TestSlottedBufferPoolViewDesc(t *testing.T) {
	dev := newDevice(t)
	pool, err := rhi.NewSlottedBufferPool(dev, 3, 200, "pool")
	if err != nil {
		t.Fatalf("NewSlottedBufferPool: %v", err)
	}
	defer pool.Release()

	heap, err := rhi.NewDescriptorHeap(dev, 3, rhi.DescriptorTypeCBVSRVUAV, true, "cbv")
	if err != nil {
		t.Fatalf("NewDescriptorHeap: %v", err)
	}
	defer heap.Release()

	for i := uint32(0); i < 3; i++ {
		if err := dev.CreateConstantBufferView(pool.ViewDesc(i), heap.CPUHandle(i)); err != nil {
			t.Fatalf("CreateConstantBufferView(%d): %v", i, err)
		}
	}
}
