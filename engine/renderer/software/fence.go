package software

import (
	"context"
	"fmt"
	"sync"

	"github.com/spaghettifunk/novus/engine/renderer/rhi"
)

type fence struct {
	dev  *Device
	name string

	mu      sync.Mutex
	value   uint64
	changed chan struct{}
}

func (d *Device) CreateFence(initial uint64) (rhi.Fence, error) {
	return &fence{dev: d, value: initial, changed: make(chan struct{})}, nil
}

func (f *fence) Name() string {
	return f.name
}

func (f *fence) SetName(name string) {
	f.name = name
}

func (f *fence) Completed() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// signal is called by the queue goroutine. Values never go backwards.
func (f *fence) signal(v uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v <= f.value {
		return
	}
	f.value = v
	close(f.changed)
	f.changed = make(chan struct{})
}

func (f *fence) Wait(ctx context.Context, value uint64) error {
	for {
		f.mu.Lock()
		if f.value >= value {
			f.mu.Unlock()
			return nil
		}
		ch := f.changed
		f.mu.Unlock()

		select {
		case <-ch:
		case <-f.dev.lostCh:
			return fmt.Errorf("%w: fence %s stuck at %d waiting for %d: %w", rhi.ErrDeviceLost, f.name, f.Completed(), value, f.dev.LostReason())
		case <-ctx.Done():
			return fmt.Errorf("%w: fence %s stuck at %d waiting for %d: %w", rhi.ErrDeviceLost, f.name, f.Completed(), value, ctx.Err())
		}
	}
}
