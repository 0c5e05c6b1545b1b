package rhi_test

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/novus/engine/renderer/rhi"
)

func TestCommandListLifecycle(t *testing.T) {
	alloc := rhi.NewCommandAllocator(rhi.CommandListDirect, "alloc")
	cl := rhi.NewCommandList(rhi.CommandListDirect, "list")

	if cl.State() != rhi.CommandListReady {
		t.Fatalf("new list is %s", cl.State())
	}
	if err := cl.Close(); !errors.Is(err, rhi.ErrInvalidListState) {
		t.Fatalf("Close before Reset: %v", err)
	}
	if err := cl.Reset(alloc, nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if alloc.InFlight() != 1 {
		t.Errorf("in flight while recording = %d", alloc.InFlight())
	}
	if err := alloc.Reset(); !errors.Is(err, rhi.ErrAllocatorInUse) {
		t.Errorf("allocator reset while recording: %v", err)
	}
	cl.SetViewport(rhi.Viewport{Width: 4, Height: 4, MaxDepth: 1})
	cl.DrawIndexedInstanced(36, 1, 0, 0, 0)
	if err := cl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if alloc.InFlight() != 0 {
		t.Errorf("in flight after close = %d", alloc.InFlight())
	}
	if len(cl.Commands()) != 2 || cl.DrawCount() != 1 {
		t.Errorf("recorded %d commands, %d draws", len(cl.Commands()), cl.DrawCount())
	}
	expectPanic(t, rhi.ErrInvalidListState, func() { cl.DrawIndexedInstanced(3, 1, 0, 0, 0) })

	if err := cl.MarkSubmitted(); err != nil {
		t.Fatalf("MarkSubmitted: %v", err)
	}
	if err := alloc.Reset(); !errors.Is(err, rhi.ErrAllocatorInUse) {
		t.Errorf("allocator reset while submitted: %v", err)
	}
	if err := cl.Reset(alloc, nil); !errors.Is(err, rhi.ErrInvalidListState) {
		t.Errorf("list reset while submitted: %v", err)
	}
	cl.MarkExecuted()
	if cl.State() != rhi.CommandListExecuted {
		t.Fatalf("state = %s", cl.State())
	}
	if err := alloc.Reset(); err != nil {
		t.Fatalf("allocator reset after execution: %v", err)
	}
	if cl.Valid() {
		t.Errorf("list still valid after allocator reset")
	}
	if err := cl.Reset(alloc, nil); err != nil {
		t.Fatalf("Reset after execution: %v", err)
	}
	if len(cl.Commands()) != 0 {
		t.Errorf("reset list kept %d commands", len(cl.Commands()))
	}
}

func TestStaleListCannotBeSubmitted(t *testing.T) {
	alloc := rhi.NewCommandAllocator(rhi.CommandListDirect, "alloc")
	cl := rhi.NewCommandList(rhi.CommandListDirect, "list")
	if err := cl.Reset(alloc, nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	cl.Close()
	if err := alloc.Reset(); err != nil {
		t.Fatalf("allocator Reset: %v", err)
	}
	if err := cl.MarkSubmitted(); !errors.Is(err, rhi.ErrStaleCommandList) {
		t.Errorf("submitting stale list: %v", err)
	}
}

func TestBundleRestrictions(t *testing.T) {
	alloc := rhi.NewCommandAllocator(rhi.CommandListBundle, "bundle alloc")
	bundle := rhi.NewCommandList(rhi.CommandListBundle, "bundle")

	direct := rhi.NewCommandAllocator(rhi.CommandListDirect, "direct alloc")
	if err := bundle.Reset(direct, nil); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Fatalf("bundle on direct allocator: %v", err)
	}
	if err := bundle.Reset(alloc, nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	for name, fn := range map[string]func(){
		"viewport":       func() { bundle.SetViewport(rhi.Viewport{}) },
		"scissor":        func() { bundle.SetScissorRect(rhi.Rect{}) },
		"barrier":        func() { bundle.ResourceBarrier(nil, rhi.ResourceStatePresent, rhi.ResourceStateRenderTarget) },
		"clear":          func() { bundle.ClearRenderTargetView(0, [4]float32{}) },
		"clear depth":    func() { bundle.ClearDepthStencilView(0, 1) },
		"render targets": func() { bundle.SetRenderTargets(0, 0) },
		"execute bundle": func() { bundle.ExecuteBundle(bundle) },
	} {
		t.Run(name, func(t *testing.T) {
			expectPanic(t, rhi.ErrBundleCommand, fn)
		})
	}

	bundle.SetGraphicsRootConstantBufferView(0, 256)
	bundle.DrawIndexedInstanced(36, 1, 0, 0, 0)
	if err := bundle.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := bundle.MarkSubmitted(); !errors.Is(err, rhi.ErrInvalidArgument) {
		t.Errorf("submitting a bundle: %v", err)
	}

	cl := rhi.NewCommandList(rhi.CommandListDirect, "list")
	if err := cl.Reset(direct, nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	cl.ExecuteBundle(bundle)
	if cmds := cl.Commands(); len(cmds) != 1 || cmds[0].Op != rhi.OpExecuteBundle {
		t.Errorf("commands = %v", cmds)
	}

	open := rhi.NewCommandList(rhi.CommandListBundle, "open bundle")
	if err := open.Reset(alloc, nil); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	expectPanic(t, rhi.ErrInvalidListState, func() { cl.ExecuteBundle(open) })
}
