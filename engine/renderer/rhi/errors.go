package rhi

import (
	"errors"
	"fmt"
)

// Fatal conditions. The engine cannot continue after any of these.
var (
	ErrDeviceCreation               = errors.New("device creation failed")
	ErrDeviceResourceCreationFailed = errors.New("device resource creation failed")
	ErrPipelineCreation             = errors.New("pipeline state creation failed")
	ErrRootSignature                = errors.New("root signature creation failed")
	ErrDeviceLost                   = errors.New("device lost")
	ErrBackendNotImplemented        = errors.New("backend not implemented")
)

// Contract violations: the caller broke a precondition.
var (
	ErrIndexOutOfRange        = errors.New("index out of range")
	ErrMisaligned             = errors.New("alignment is not a power of two")
	ErrDescriptorTypeMismatch = errors.New("descriptor type mismatch")
	ErrShaderVisibleSource    = errors.New("cannot copy from a shader-visible descriptor heap")
	ErrNotShaderVisible       = errors.New("descriptor heap is not shader visible")
	ErrShrinkBelowUsage       = errors.New("cannot shrink below used descriptor count")
	ErrInvalidListState       = errors.New("command list in wrong state")
	ErrBundleCommand          = errors.New("command not allowed in a bundle")
	ErrStaleCommandList       = errors.New("command list allocator was reset")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrNotMappable            = errors.New("resource is not CPU mappable")
	ErrReleased               = errors.New("resource already released")
)

// Resource exhaustion and scheduling conditions.
var (
	ErrOutOfSpace     = errors.New("out of space")
	ErrAllocatorInUse = errors.New("command allocator still in use")
)

// violation panics with an error wrapping sentinel. It is used by hot path
// accessors where a bad argument is a programming error.
func violation(sentinel error, format string, args ...interface{}) {
	panic(fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)))
}
