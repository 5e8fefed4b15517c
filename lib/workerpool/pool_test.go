package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/giggle/lib/fault"
)

func TestNewRejectsZeroWorkers(t *testing.T) {
	if _, err := New(0); !errors.Is(err, fault.ErrLogicFailure) {
		t.Errorf("Expected logic failure, got %v", err)
	}
}

func TestSubmitResult(t *testing.T) {
	p, _ := New(2)
	defer p.Shutdown()

	f, err := p.Submit(func() (interface{}, error) { return 42, nil })
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	v, err := f.Wait()
	if err != nil || v.(int) != 42 {
		t.Errorf("Expected (42, nil), got (%v, %v)", v, err)
	}
}

func TestErrorAndPanicPropagation(t *testing.T) {
	p, _ := New(1)
	defer p.Shutdown()

	want := errors.New("task failed")
	f1, _ := p.Submit(func() (interface{}, error) { return nil, want })
	f2, _ := p.Submit(func() (interface{}, error) { panic("boom") })
	f3, _ := p.Submit(func() (interface{}, error) { return "still alive", nil })

	if _, err := f1.Wait(); err != want {
		t.Errorf("Expected task error, got %v", err)
	}
	if _, err := f2.Wait(); !errors.Is(err, fault.ErrLogicFailure) {
		t.Errorf("Expected panic to surface as logic failure, got %v", err)
	}
	if v, err := f3.Wait(); err != nil || v != "still alive" {
		t.Errorf("Worker must survive a panicking task, got (%v, %v)", v, err)
	}

	if s := p.Stats(); s.Failed != 2 || s.Completed != 3 {
		t.Errorf("Expected 2 failed and 3 completed, got %+v", s)
	}
}

// TestWorkersRunConcurrently submits W tasks that wait on a barrier reached only
// when all W run at the same time
func TestWorkersRunConcurrently(t *testing.T) {
	const workers = 4
	p, _ := New(workers)
	defer p.Shutdown()

	var barrier sync.WaitGroup
	barrier.Add(workers)
	released := make(chan struct{})

	futures := make([]*Future, workers)
	for i := 0; i < workers; i++ {
		f, err := p.Submit(func() (interface{}, error) {
			barrier.Done()
			<-released
			return nil, nil
		})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		futures[i] = f
	}

	allStarted := make(chan struct{})
	go func() {
		barrier.Wait()
		close(allStarted)
	}()

	select {
	case <-allStarted:
	case <-time.After(2 * time.Second):
		t.Fatalf("Not all %d tasks started concurrently", workers)
	}

	close(released)
	for _, f := range futures {
		if _, err := f.Wait(); err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	}
}

// TestExtraTaskWaitsForFreeWorker submits W+1 blocking tasks and checks one stays pending
func TestExtraTaskWaitsForFreeWorker(t *testing.T) {
	const workers = 3
	p, _ := New(workers)
	defer p.Shutdown()

	var started atomic.Int32
	release := make(chan struct{})
	block := func() (interface{}, error) {
		started.Add(1)
		<-release
		return nil, nil
	}

	for i := 0; i < workers; i++ {
		_, _ = p.Submit(block)
	}
	extra, _ := p.Submit(block)

	// wait until all workers are busy
	deadline := time.Now().Add(2 * time.Second)
	for started.Load() < workers {
		if time.Now().After(deadline) {
			t.Fatalf("Workers did not start")
		}
		time.Sleep(time.Millisecond)
	}

	time.Sleep(20 * time.Millisecond)
	if started.Load() != workers {
		t.Fatalf("Expected exactly %d running tasks, got %d", workers, started.Load())
	}
	if s := p.Stats(); s.Pending != 1 || s.Busy != workers {
		t.Errorf("Expected 1 pending and %d busy, got %+v", workers, s)
	}
	select {
	case <-extra.Done():
		t.Fatalf("Extra task finished while all workers were busy")
	default:
	}

	close(release)
	select {
	case <-extra.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("Extra task never ran")
	}
}

// TestFIFODispatch checks submission order with a single worker
func TestFIFODispatch(t *testing.T) {
	p, _ := New(1)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 50; i++ {
		i := i
		_, _ = p.Go(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	p.Shutdown()

	if len(order) != 50 {
		t.Fatalf("Expected 50 executed tasks, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("Expected task %d at position %d, got %d", i, i, v)
		}
	}
}

// TestShutdownDrainsAndRejects checks that accepted tasks run and later ones are rejected
func TestShutdownDrainsAndRejects(t *testing.T) {
	p, _ := New(2)

	var ran atomic.Int32
	for i := 0; i < 100; i++ {
		_, err := p.Go(func() {
			time.Sleep(100 * time.Microsecond)
			ran.Add(1)
		})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	p.Shutdown()
	if ran.Load() != 100 {
		t.Errorf("Expected all 100 tasks to run before shutdown returned, got %d", ran.Load())
	}
	if !p.Stopping() {
		t.Errorf("Pool must report stopping")
	}

	if _, err := p.Go(func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped after shutdown, got %v", err)
	}

	// second shutdown is a no-op
	p.Shutdown()
}

func TestShutdownContextTimeout(t *testing.T) {
	p, _ := New(1)

	release := make(chan struct{})
	_, _ = p.Go(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := p.ShutdownContext(ctx); !errors.Is(err, fault.ErrTimeout) {
		t.Errorf("Expected timeout, got %v", err)
	}

	close(release)
	if err := p.ShutdownContext(context.Background()); err != nil {
		t.Errorf("Expected clean shutdown, got %v", err)
	}
}

func TestFutureWaitContext(t *testing.T) {
	p, _ := New(1)
	defer p.Shutdown()

	release := make(chan struct{})
	f, _ := p.Go(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.WaitContext(ctx); !fault.Is(err, fault.KindTimeout) {
		t.Errorf("Expected timeout, got %v", err)
	}

	close(release)
	if _, err := f.WaitContext(context.Background()); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestSubmitNil(t *testing.T) {
	p, _ := New(1)
	defer p.Shutdown()

	if _, err := p.Submit(nil); !errors.Is(err, fault.ErrLogicFailure) {
		t.Errorf("Expected logic failure, got %v", err)
	}
	if _, err := p.Go(nil); !errors.Is(err, fault.ErrLogicFailure) {
		t.Errorf("Expected logic failure, got %v", err)
	}
}

func BenchmarkSubmit(b *testing.B) {
	p, _ := New(4)
	defer p.Shutdown()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f, _ := p.Submit(func() (interface{}, error) { return nil, nil })
		_, _ = f.Wait()
	}
}
