package workerpool

import (
	"context"

	"github.com/ValentinKolb/giggle/lib/fault"
)

// Future is the result handle of a submitted task
type Future struct {
	done  chan struct{}
	value interface{}
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// complete stores the result. It is called exactly once by the worker.
func (f *Future) complete(value interface{}, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Done is closed when the task finished
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task finished and returns its result
func (f *Future) Wait() (interface{}, error) {
	<-f.done
	return f.value, f.err
}

// WaitContext is like Wait but gives up when ctx is done.
// The task keeps running in that case.
func (f *Future) WaitContext(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, fault.Wrap(fault.KindTimeout, "workerpool.Future.WaitContext", ctx.Err())
	}
}
