package systems

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestNewJobSystemValidation(t *testing.T) {
	if _, err := NewJobSystem(nil, 0, 1); !errors.Is(err, ErrNoWorkers) {
		t.Fatalf("expected ErrNoWorkers, got %v", err)
	}
	if _, err := NewJobSystem(nil, 1, -1); !errors.Is(err, ErrNegativeChannelSize) {
		t.Fatalf("expected ErrNegativeChannelSize, got %v", err)
	}
}

func TestBatchWaitsForAllJobs(t *testing.T) {
	js, err := NewJobSystem(nil, 4, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer js.Shutdown()

	var ran atomic.Int32
	tasks := make([]JobTask, 32)
	for i := range tasks {
		tasks[i] = JobTask{
			Name: "count",
			OnStart: func() error {
				ran.Add(1)
				return nil
			},
		}
	}
	// the pool is reused across several rounds
	for round := 1; round <= 3; round++ {
		if err := js.SubmitBatch(tasks...).Wait(); err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		if got := ran.Load(); got != int32(32*round) {
			t.Fatalf("round %d: ran %d jobs", round, got)
		}
	}
}

func TestBatchJoinsFailuresAndPanics(t *testing.T) {
	js, err := NewJobSystem(nil, 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer js.Shutdown()

	errBoom := errors.New("boom")
	var failed atomic.Int32
	b := js.SubmitBatch(
		JobTask{Name: "ok", OnStart: func() error { return nil }},
		JobTask{
			Name:      "fails",
			OnStart:   func() error { return errBoom },
			OnFailure: func(error) { failed.Add(1) },
		},
		JobTask{Name: "panics", OnStart: func() error { panic(errBoom) }},
		JobTask{Name: "panics-string", OnStart: func() error { panic("bad index") }},
	)
	err = b.Wait()
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom in %v", err)
	}
	if !errors.Is(err, ErrJobPanicked) {
		t.Fatalf("expected ErrJobPanicked in %v", err)
	}
	if failed.Load() != 1 {
		t.Fatalf("OnFailure ran %d times", failed.Load())
	}
}

func TestSubmitAfterShutdown(t *testing.T) {
	js, err := NewJobSystem(nil, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := js.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if err := js.Submit(JobTask{}); !errors.Is(err, ErrJobSystemClosed) {
		t.Fatalf("expected ErrJobSystemClosed, got %v", err)
	}
	if err := js.SubmitBatch(JobTask{Name: "late"}).Wait(); !errors.Is(err, ErrJobSystemClosed) {
		t.Fatalf("expected ErrJobSystemClosed, got %v", err)
	}
	// a second shutdown is a no-op
	if err := js.Shutdown(); err != nil {
		t.Fatal(err)
	}
}

func TestGuard(t *testing.T) {
	if err := Guard(nil); err != nil {
		t.Errorf("Guard(nil) = %v", err)
	}
	sentinel := errors.New("boom")
	err := Guard(func() error { panic(sentinel) })
	if !errors.Is(err, ErrJobPanicked) || !errors.Is(err, sentinel) {
		t.Errorf("panicking with an error: %v", err)
	}
	err = Guard(func() error { panic("text") })
	if !errors.Is(err, ErrJobPanicked) {
		t.Errorf("panicking with a string: %v", err)
	}
}
