package rhi

import (
	"sync"

	"github.com/google/uuid"
	"github.com/spaghettifunk/novus/engine/core"
)

// Named is implemented by every device object.
type Named interface {
	Name() string
	SetName(name string)
}

// Resource is the capability every GPU resource shares. Anything else a
// resource can do is expressed through the narrower interfaces below.
type Resource interface {
	Named
	ID() uuid.UUID
	Kind() ResourceKind
	Size() uint64
}

// Allocator is a resource that hands out sub-ranges of itself.
type Allocator interface {
	Resource
	Allocate(size, alignment uint64) (Allocation, error)
	Clear()
}

// Resizable is a resource whose capacity can change after creation.
type Resizable interface {
	Resource
	Resize(capacity uint32) error
}

// DescriptorSource hands out descriptor handles by index.
type DescriptorSource interface {
	Resource
	CPUHandle(index uint32) CPUDescriptorHandle
	GPUDescriptorHandle(index uint32) GPUDescriptorHandle
}

// ResourceBase carries identity and naming. Backends embed it in their
// resource types.
type ResourceBase struct {
	id   uuid.UUID
	kind ResourceKind

	mu   sync.RWMutex
	name string
}

// InitResource assigns a fresh identity. Call it once from the owning
// constructor. Unnamed resources get a generated name.
func (r *ResourceBase) InitResource(kind ResourceKind, name string) {
	r.id = core.NewIdentifier()
	r.kind = kind
	if name == "" {
		name = kind.String() + "-" + core.ShortIdentifier()
	}
	r.name = name
}

func (r *ResourceBase) ID() uuid.UUID {
	return r.id
}

func (r *ResourceBase) Kind() ResourceKind {
	return r.kind
}

func (r *ResourceBase) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.name
}

func (r *ResourceBase) SetName(name string) {
	r.mu.Lock()
	r.name = name
	r.mu.Unlock()
}
