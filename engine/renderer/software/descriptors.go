package software

import (
	"fmt"

	"github.com/spaghettifunk/novus/engine/renderer/rhi"
)

// Descriptor handles encode the owning table in the upper half and the
// byte offset into it in the lower half. Shader-visible handles carry
// gpuHandleBit on top.
const (
	tableShift   = 32
	offsetMask   = 1<<tableShift - 1
	gpuHandleBit = 1 << 63
)

var descriptorStrides = [...]uint32{
	rhi.DescriptorTypeCBVSRVUAV: 32,
	rhi.DescriptorTypeSampler:   16,
	rhi.DescriptorTypeRTV:       32,
	rhi.DescriptorTypeDSV:       8,
}

type viewKind uint8

const (
	viewEmpty viewKind = iota
	viewCBV
	viewRTV
	viewDSV
)

type descriptor struct {
	kind   viewKind
	cbv    rhi.ConstantBufferViewDesc
	target *texture
}

type table struct {
	rhi.ResourceBase

	id       uint32
	typ      rhi.DescriptorType
	visible  bool
	slots    []descriptor
	released bool
}

func (t *table) Size() uint64 {
	return uint64(len(t.slots)) * uint64(descriptorStrides[t.typ])
}

func (t *table) Type() rhi.DescriptorType {
	return t.typ
}

func (t *table) Capacity() uint32 {
	return uint32(len(t.slots))
}

func (t *table) ShaderVisible() bool {
	return t.visible
}

func (t *table) CPUStart() rhi.CPUDescriptorHandle {
	return rhi.CPUDescriptorHandle(uint64(t.id) << tableShift)
}

func (t *table) GPUStart() rhi.GPUDescriptorHandle {
	if !t.visible {
		return 0
	}
	return rhi.GPUDescriptorHandle(uint64(t.id)<<tableShift | gpuHandleBit)
}

// Release is recorded on the device so later lookups fail instead of
// reading a dead table.
func (t *table) Release() error {
	t.released = true
	return nil
}

func (d *Device) CreateDescriptorTable(desc rhi.DescriptorTableDesc) (rhi.DescriptorTable, error) {
	if int(desc.Type) >= len(descriptorStrides) {
		return nil, fmt.Errorf("%w: descriptor type %s", rhi.ErrInvalidArgument, desc.Type)
	}
	if desc.ShaderVisible && !desc.Type.CanBeShaderVisible() {
		return nil, fmt.Errorf("%w: %s tables cannot be shader visible", rhi.ErrInvalidArgument, desc.Type)
	}
	if uint64(desc.Capacity)*uint64(descriptorStrides[desc.Type]) > offsetMask {
		return nil, fmt.Errorf("%w: %d descriptors do not fit a table", rhi.ErrOutOfSpace, desc.Capacity)
	}

	d.tablesMu.Lock()
	defer d.tablesMu.Unlock()

	d.nextTable++
	t := &table{
		id:      d.nextTable,
		typ:     desc.Type,
		visible: desc.ShaderVisible,
		slots:   make([]descriptor, desc.Capacity),
	}
	t.InitResource(rhi.ResourceKindDescriptorHeap, desc.Name)
	d.tables[t.id] = t
	return t, nil
}

func (d *Device) DescriptorIncrementSize(t rhi.DescriptorType) uint32 {
	if int(t) >= len(descriptorStrides) {
		return 0
	}
	return descriptorStrides[t]
}

// lookup resolves a handle to its table and slot index.
func (d *Device) lookup(h uint64, want rhi.DescriptorType) (*table, uint32, error) {
	id := uint32((h &^ gpuHandleBit) >> tableShift)
	off := uint32(h & offsetMask)

	d.tablesMu.RLock()
	t, ok := d.tables[id]
	d.tablesMu.RUnlock()
	if !ok || t.released {
		return nil, 0, fmt.Errorf("%w: descriptor handle %#x names no live table", rhi.ErrInvalidArgument, h)
	}
	if t.typ != want {
		return nil, 0, fmt.Errorf("%w: handle %#x is %s, want %s", rhi.ErrDescriptorTypeMismatch, h, t.typ, want)
	}
	stride := descriptorStrides[t.typ]
	if off%stride != 0 || off/stride >= uint32(len(t.slots)) {
		return nil, 0, fmt.Errorf("%w: handle %#x in table %s", rhi.ErrIndexOutOfRange, h, t.Name())
	}
	return t, off / stride, nil
}

func (d *Device) write(dst rhi.CPUDescriptorHandle, t rhi.DescriptorType, desc descriptor) error {
	if uint64(dst)&gpuHandleBit != 0 {
		return fmt.Errorf("%w: %#x is a shader-visible handle", rhi.ErrInvalidArgument, uint64(dst))
	}
	tbl, i, err := d.lookup(uint64(dst), t)
	if err != nil {
		return err
	}
	tbl.slots[i] = desc
	return nil
}

func (d *Device) CopyDescriptors(dst, src rhi.CPUDescriptorHandle, count uint32, t rhi.DescriptorType) error {
	if count == 0 {
		return nil
	}
	dt, di, err := d.lookup(uint64(dst), t)
	if err != nil {
		return err
	}
	st, si, err := d.lookup(uint64(src), t)
	if err != nil {
		return err
	}
	if di+count > uint32(len(dt.slots)) || si+count > uint32(len(st.slots)) {
		return fmt.Errorf("%w: copying %d descriptors", rhi.ErrIndexOutOfRange, count)
	}
	copy(dt.slots[di:di+count], st.slots[si:si+count])
	return nil
}

func (d *Device) CreateConstantBufferView(desc rhi.ConstantBufferViewDesc, dst rhi.CPUDescriptorHandle) error {
	if uint64(desc.Location)%rhi.ConstantBufferAlignment != 0 || desc.Size%rhi.ConstantBufferAlignment != 0 || desc.Size == 0 {
		return fmt.Errorf("%w: constant buffer view at %#x of %d bytes", rhi.ErrInvalidArgument, uint64(desc.Location), desc.Size)
	}
	if _, err := d.mem.resolve(desc.Location, uint64(desc.Size)); err != nil {
		return err
	}
	return d.write(dst, rhi.DescriptorTypeCBVSRVUAV, descriptor{kind: viewCBV, cbv: desc})
}

func (d *Device) CreateRenderTargetView(target rhi.Texture, dst rhi.CPUDescriptorHandle) error {
	t, ok := target.(*texture)
	if !ok || t.color == nil {
		return fmt.Errorf("%w: render target view needs a color texture from this device", rhi.ErrInvalidArgument)
	}
	return d.write(dst, rhi.DescriptorTypeRTV, descriptor{kind: viewRTV, target: t})
}

func (d *Device) CreateDepthStencilView(target rhi.Texture, dst rhi.CPUDescriptorHandle) error {
	t, ok := target.(*texture)
	if !ok || t.depth == nil {
		return fmt.Errorf("%w: depth stencil view needs a depth texture from this device", rhi.ErrInvalidArgument)
	}
	return d.write(dst, rhi.DescriptorTypeDSV, descriptor{kind: viewDSV, target: t})
}
