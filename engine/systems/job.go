package systems

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/novus/engine/core"
)

// JobTask is one unit of work. OnStart runs on a pool goroutine; the
// remaining callbacks run on the same goroutine right after it.
type JobTask struct {
	Name       string
	OnStart    func() error
	OnFailure  func(err error)
	OnComplete func()
	// OnCompletionCallback runs whether the job failed or not.
	OnCompletionCallback func()
}

// JobSystem is a fixed set of long-lived worker goroutines fed from a
// shared queue.
type JobSystem struct {
	logger     *core.Logger
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

var (
	ErrNoWorkers           = errors.New("attempting to create worker pool with less than 1 worker")
	ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")
	ErrJobSystemClosed     = errors.New("job system is shut down")
	ErrJobPanicked         = errors.New("job panicked")
)

func NewJobSystem(logger *core.Logger, numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		logger:     core.OrNop(logger).With("component", "jobs"),
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}

	js.start()

	return js, nil
}

func (js *JobSystem) Workers() int {
	return js.numWorkers
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func(worker int) {
			defer js.wg.Done()
			for job := range js.jobQueue {
				js.run(worker, job)
			}
		}(i)
	}
}

func (js *JobSystem) run(worker int, job JobTask) {
	if job.OnCompletionCallback != nil {
		defer job.OnCompletionCallback()
	}

	err := Guard(job.OnStart)
	if err != nil {
		js.logger.Debug("job failed", "job", job.Name, "worker", worker, "err", err)
		if job.OnFailure != nil {
			job.OnFailure(err)
		}
		return
	}
	if job.OnComplete != nil {
		job.OnComplete()
	}
}

// Guard runs fn and turns a panic inside it into an error wrapping
// ErrJobPanicked, so a fork-join wait is never left hanging.
func Guard(fn func() error) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("%w: %w", ErrJobPanicked, e)
				return
			}
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return fn()
}

/**
 * @brief Shuts the job system down. Queued jobs still run.
 */
func (js *JobSystem) Shutdown() error {
	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		return nil
	}
	js.closed = true
	close(js.jobQueue)
	js.mu.Unlock()

	js.wg.Wait()
	return nil
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while
 * the queue is full.
 */
func (js *JobSystem) Submit(jt JobTask) error {
	js.mu.RLock()
	defer js.mu.RUnlock()
	if js.closed {
		return ErrJobSystemClosed
	}
	js.jobQueue <- jt
	return nil
}

// Batch is a set of jobs that are waited on together.
type Batch struct {
	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

// SubmitBatch queues every task and returns a Batch whose Wait blocks until
// all of them have finished. A task's own callbacks still run.
func (js *JobSystem) SubmitBatch(tasks ...JobTask) *Batch {
	b := &Batch{}
	for _, task := range tasks {
		b.wg.Add(1)
		task := task
		onFailure := task.OnFailure
		task.OnFailure = func(err error) {
			b.record(fmt.Errorf("%s: %w", task.Name, err))
			if onFailure != nil {
				onFailure(err)
			}
		}
		onDone := task.OnCompletionCallback
		task.OnCompletionCallback = func() {
			if onDone != nil {
				onDone()
			}
			b.wg.Done()
		}
		if err := js.Submit(task); err != nil {
			b.record(fmt.Errorf("%s: %w", task.Name, err))
			b.wg.Done()
		}
	}
	return b
}

func (b *Batch) record(err error) {
	b.mu.Lock()
	b.errs = append(b.errs, err)
	b.mu.Unlock()
}

// Wait blocks until every job in the batch has run and returns their
// failures joined together.
func (b *Batch) Wait() error {
	b.wg.Wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	return errors.Join(b.errs...)
}
