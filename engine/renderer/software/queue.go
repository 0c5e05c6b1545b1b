package software

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/novus/engine/containers"
	"github.com/spaghettifunk/novus/engine/renderer/rhi"
)

type submissionKind uint8

const (
	submitLists submissionKind = iota
	submitSignal
	submitPresent
)

type submission struct {
	kind  submissionKind
	lists []*rhi.CommandList
	fence *fence
	value uint64
	swap  *swapChain
	index uint32
}

// queue executes submissions in order on its own goroutine, the way a GPU
// consumes a command queue behind the CPU.
type queue struct {
	dev  *Device
	exec *executor

	mu      sync.Mutex
	cond    *sync.Cond
	pending *containers.RingQueue[submission]
	closed  bool
	done    chan struct{}
}

func newQueue(dev *Device, depth int) *queue {
	q := &queue{
		dev:     dev,
		exec:    newExecutor(dev),
		pending: containers.NewRingQueue[submission](depth),
		done:    make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

func (q *queue) ExecuteCommandLists(lists ...*rhi.CommandList) error {
	if err := q.dev.LostReason(); err != nil {
		return fmt.Errorf("%w: %w", rhi.ErrDeviceLost, err)
	}
	for _, cl := range lists {
		if cl == nil {
			return fmt.Errorf("%w: nil command list", rhi.ErrInvalidArgument)
		}
		if cl.Kind() != rhi.CommandListDirect {
			return fmt.Errorf("%w: %s is a bundle", rhi.ErrInvalidArgument, cl.Name())
		}
		if s := cl.State(); s != rhi.CommandListClosed {
			return fmt.Errorf("%w: %s is %s", rhi.ErrInvalidListState, cl.Name(), s)
		}
		if !cl.Valid() {
			return fmt.Errorf("%w: %s", rhi.ErrStaleCommandList, cl.Name())
		}
	}
	for _, cl := range lists {
		if err := cl.MarkSubmitted(); err != nil {
			return err
		}
	}
	return q.push(submission{kind: submitLists, lists: append([]*rhi.CommandList(nil), lists...)})
}

func (q *queue) Signal(f rhi.Fence, value uint64) error {
	sf, ok := f.(*fence)
	if !ok {
		return fmt.Errorf("%w: fence from another device", rhi.ErrInvalidArgument)
	}
	return q.push(submission{kind: submitSignal, fence: sf, value: value})
}

func (q *queue) present(sc *swapChain, index uint32) error {
	return q.push(submission{kind: submitPresent, swap: sc, index: index})
}

// push blocks while the queue is full.
func (q *queue) push(s submission) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.pending.IsFull() && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return fmt.Errorf("%w: queue closed", rhi.ErrDeviceLost)
	}
	if err := q.pending.Enqueue(s); err != nil {
		return err
	}
	q.cond.Broadcast()
	return nil
}

func (q *queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for q.pending.IsEmpty() && !q.closed {
			q.cond.Wait()
		}
		if q.pending.IsEmpty() {
			q.mu.Unlock()
			return
		}
		s, _ := q.pending.Dequeue()
		q.cond.Broadcast()
		q.mu.Unlock()

		q.process(s)
	}
}

func (q *queue) process(s submission) {
	lost := q.dev.LostReason() != nil
	switch s.kind {
	case submitLists:
		for _, cl := range s.lists {
			if !lost {
				if err := q.exec.run(cl); err != nil {
					q.dev.markLost(fmt.Errorf("executing %s: %w", cl.Name(), err))
					lost = true
				}
			}
			cl.MarkExecuted()
		}
		q.dev.stats.submissions.Add(1)
	case submitSignal:
		if !lost {
			s.fence.signal(s.value)
		}
	case submitPresent:
		if !lost {
			if err := s.swap.display(s.index); err != nil {
				q.dev.markLost(err)
			}
		}
	}
}

// close drains what is already queued and stops the goroutine.
func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done
}
