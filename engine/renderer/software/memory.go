package software

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spaghettifunk/novus/engine/math"
	"github.com/spaghettifunk/novus/engine/renderer/rhi"
)

// addressBase keeps address zero invalid.
const addressBase = rhi.DefaultPlacementAlignment

type region struct {
	base uint64
	data []byte
}

// addressSpace hands out device addresses for buffers and resolves them
// back to host memory. Regions are kept sorted by base.
type addressSpace struct {
	mu      sync.RWMutex
	next    uint64
	regions []region
}

func newAddressSpace() *addressSpace {
	return &addressSpace{next: addressBase}
}

// reserve places data at the next aligned address.
func (as *addressSpace) reserve(data []byte) rhi.GPUAddress {
	as.mu.Lock()
	defer as.mu.Unlock()

	base := as.next
	size := math.AlignUp(uint64(len(data)), uint64(rhi.DefaultPlacementAlignment))
	if size == 0 {
		size = rhi.DefaultPlacementAlignment
	}
	as.next = base + size
	as.regions = append(as.regions, region{base: base, data: data})
	return rhi.GPUAddress(base)
}

func (as *addressSpace) release(addr rhi.GPUAddress) {
	as.mu.Lock()
	defer as.mu.Unlock()

	i := as.find(uint64(addr))
	if i < len(as.regions) && as.regions[i].base == uint64(addr) {
		as.regions = append(as.regions[:i], as.regions[i+1:]...)
	}
}

// find returns the index of the region that could contain a, or
// len(regions) if none can.
func (as *addressSpace) find(a uint64) int {
	i := sort.Search(len(as.regions), func(i int) bool {
		return as.regions[i].base > a
	})
	if i == 0 {
		return len(as.regions)
	}
	return i - 1
}

// resolve returns size bytes of host memory at addr.
func (as *addressSpace) resolve(addr rhi.GPUAddress, size uint64) ([]byte, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	a := uint64(addr)
	i := as.find(a)
	if i == len(as.regions) {
		return nil, fmt.Errorf("%w: address %#x is not mapped", rhi.ErrInvalidArgument, a)
	}
	r := as.regions[i]
	off := a - r.base
	if off+size > uint64(len(r.data)) {
		return nil, fmt.Errorf("%w: %d bytes at %#x run past the end of the buffer", rhi.ErrInvalidArgument, size, a)
	}
	return r.data[off : off+size], nil
}

type buffer struct {
	rhi.ResourceBase

	dev      *Device
	heapType rhi.HeapType
	addr     rhi.GPUAddress
	data     []byte
	mapped   bool
	released bool
}

func (b *buffer) Size() uint64 {
	return uint64(len(b.data))
}

func (b *buffer) HeapType() rhi.HeapType {
	return b.heapType
}

func (b *buffer) GPUAddress() rhi.GPUAddress {
	return b.addr
}

func (b *buffer) Map() ([]byte, error) {
	if b.released {
		return nil, fmt.Errorf("%w: buffer %s", rhi.ErrReleased, b.Name())
	}
	if !b.heapType.Mappable() {
		return nil, fmt.Errorf("%w: buffer %s lives in the %s heap", rhi.ErrNotMappable, b.Name(), b.heapType)
	}
	b.mapped = true
	return b.data, nil
}

func (b *buffer) Unmap() {
	b.mapped = false
}

func (b *buffer) Release() error {
	if b.released {
		return nil
	}
	b.released = true
	b.dev.mem.release(b.addr)
	return nil
}
