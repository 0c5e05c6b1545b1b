package rhi_test

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/novus/engine/renderer/rhi"
)

func TestDescriptorHeapStride(t *testing.T) {
	dev := newDevice(t)
	types := []rhi.DescriptorType{
		rhi.DescriptorTypeCBVSRVUAV, rhi.DescriptorTypeSampler, rhi.DescriptorTypeRTV, rhi.DescriptorTypeDSV,
	}
	for _, typ := range types {
		t.Run(typ.String(), func(t *testing.T) {
			const capacity = 16
			heap, err := rhi.NewDescriptorHeap(dev, capacity, typ, typ.CanBeShaderVisible(), "heap")
			if err != nil {
				t.Fatalf("NewDescriptorHeap: %v", err)
			}
			defer heap.Release()

			stride := heap.Stride()
			if stride != dev.DescriptorIncrementSize(typ) || stride == 0 {
				t.Fatalf("stride = %d", stride)
			}
			for i := uint32(0); i < capacity; i++ {
				want := heap.CPUHandle(0) + rhi.CPUDescriptorHandle(i*stride)
				if got := heap.CPUHandle(i); got != want {
					t.Errorf("CPUHandle(%d) = %#x, want %#x", i, got, want)
				}
				if heap.ShaderVisible() {
					want := heap.GPUDescriptorHandle(0) + rhi.GPUDescriptorHandle(i*stride)
					if got := heap.GPUDescriptorHandle(i); got != want {
						t.Errorf("GPUDescriptorHandle(%d) = %#x, want %#x", i, got, want)
					}
				}
			}
			expectPanic(t, rhi.ErrIndexOutOfRange, func() { heap.CPUHandle(capacity) })
		})
	}
}

func TestDescriptorHeapGPUHandleNeedsVisibility(t *testing.T) {
	dev := newDevice(t)
	heap, err := rhi.NewDescriptorHeap(dev, 4, rhi.DescriptorTypeCBVSRVUAV, false, "staging")
	if err != nil {
		t.Fatalf("NewDescriptorHeap: %v", err)
	}
	defer heap.Release()
	expectPanic(t, rhi.ErrNotShaderVisible, func() { heap.GPUDescriptorHandle(0) })

	if _, err := rhi.NewDescriptorHeap(dev, 4, rhi.DescriptorTypeRTV, true, "rtv"); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Errorf("shader-visible RTV heap: got %v", err)
	}
}

func TestDescriptorHeapReserve(t *testing.T) {
	dev := newDevice(t)
	heap, err := rhi.NewDescriptorHeap(dev, 8, rhi.DescriptorTypeCBVSRVUAV, false, "heap")
	if err != nil {
		t.Fatalf("NewDescriptorHeap: %v", err)
	}
	defer heap.Release()

	first, err := heap.Reserve(5)
	if err != nil || first != 0 {
		t.Fatalf("Reserve(5) = %d, %v", first, err)
	}
	second, err := heap.Reserve(3)
	if err != nil || second != 5 {
		t.Fatalf("Reserve(3) = %d, %v", second, err)
	}
	if _, err := heap.Reserve(1); !errors.Is(err, rhi.ErrOutOfSpace) {
		t.Fatalf("Reserve past capacity: %v", err)
	}
	if heap.Used() != 8 {
		t.Errorf("used = %d", heap.Used())
	}
}

func TestDescriptorHeapResize(t *testing.T) {
	dev := newDevice(t)
	pool, err := rhi.NewSlottedBufferPool(dev, 4, 64, "pool")
	if err != nil {
		t.Fatalf("NewSlottedBufferPool: %v", err)
	}
	defer pool.Release()

	staging, err := rhi.NewDescriptorHeap(dev, 4, rhi.DescriptorTypeCBVSRVUAV, false, "staging")
	if err != nil {
		t.Fatalf("NewDescriptorHeap: %v", err)
	}
	defer staging.Release()
	if _, err := staging.Reserve(3); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	for i := uint32(0); i < 3; i++ {
		if err := dev.CreateConstantBufferView(pool.ViewDesc(i), staging.CPUHandle(i)); err != nil {
			t.Fatalf("CreateConstantBufferView: %v", err)
		}
	}

	if err := staging.Resize(2); !errors.Is(err, rhi.ErrShrinkBelowUsage) {
		t.Fatalf("shrinking below usage: %v", err)
	}

	gen := staging.Generation()
	oldStart := staging.CPUHandle(0)
	if err := staging.Resize(32); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if staging.Capacity() != 32 || staging.Used() != 3 {
		t.Errorf("after resize capacity=%d used=%d", staging.Capacity(), staging.Used())
	}
	if staging.Generation() == gen {
		t.Errorf("generation did not change")
	}
	if staging.CPUHandle(0) == oldStart {
		t.Errorf("resize kept the old table")
	}
	// The preserved descriptors are valid copy sources.
	if err := dev.CopyDescriptors(staging.CPUHandle(10), staging.CPUHandle(0), 3, rhi.DescriptorTypeCBVSRVUAV); err != nil {
		t.Errorf("copying preserved descriptors: %v", err)
	}

	visible, err := rhi.NewDescriptorHeap(dev, 4, rhi.DescriptorTypeCBVSRVUAV, true, "visible")
	if err != nil {
		t.Fatalf("NewDescriptorHeap: %v", err)
	}
	defer visible.Release()
	visible.Reserve(2)
	if err := visible.Resize(8); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if visible.Used() != 0 {
		t.Errorf("shader-visible heap kept %d descriptors across resize", visible.Used())
	}

	var r rhi.Resizable = visible
	if err := r.Resize(16); err != nil || visible.Capacity() != 16 {
		t.Errorf("Resizable.Resize: %v, capacity %d", err, visible.Capacity())
	}
}

func TestDescriptorHeapCopyFrom(t *testing.T) {
	dev := newDevice(t)
	pool, err := rhi.NewSlottedBufferPool(dev, 6, 64, "pool")
	if err != nil {
		t.Fatalf("NewSlottedBufferPool: %v", err)
	}
	defer pool.Release()

	staging, err := rhi.NewDescriptorHeap(dev, 6, rhi.DescriptorTypeCBVSRVUAV, false, "staging")
	if err != nil {
		t.Fatalf("NewDescriptorHeap: %v", err)
	}
	defer staging.Release()
	staging.Reserve(6)
	for i := uint32(0); i < 6; i++ {
		if err := dev.CreateConstantBufferView(pool.ViewDesc(i), staging.CPUHandle(i)); err != nil {
			t.Fatalf("CreateConstantBufferView: %v", err)
		}
	}

	visible, err := rhi.NewDescriptorHeap(dev, 2, rhi.DescriptorTypeCBVSRVUAV, true, "visible")
	if err != nil {
		t.Fatalf("NewDescriptorHeap: %v", err)
	}
	defer visible.Release()

	if err := visible.CopyFrom(staging); err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	if visible.Capacity() < staging.Capacity() {
		t.Errorf("target did not grow: capacity %d", visible.Capacity())
	}
	if visible.Used() != staging.Used() {
		t.Errorf("used = %d, want %d", visible.Used(), staging.Used())
	}

	if err := staging.CopyFrom(visible); !errors.Is(err, rhi.ErrShaderVisibleSource) {
		t.Errorf("copy from shader-visible heap: %v", err)
	}

	samplers, err := rhi.NewDescriptorHeap(dev, 6, rhi.DescriptorTypeSampler, false, "samplers")
	if err != nil {
		t.Fatalf("NewDescriptorHeap: %v", err)
	}
	defer samplers.Release()
	if err := visible.CopyFrom(samplers); !errors.Is(err, rhi.ErrDescriptorTypeMismatch) {
		t.Errorf("copy across types: %v", err)
	}
}
