// Package workerpool implements a fixed-size pool of worker goroutines that
// execute submitted tasks from a shared FIFO queue (see package queue).
//
// Features and Guarantees:
//
//   - Fixed size: all workers are started by New and live until Shutdown
//   - FIFO dispatch: tasks are handed to idle workers in submission order;
//     completion order across workers is not defined
//   - Sequential per worker: one worker runs one task at a time
//   - Futures: Submit returns a Future that yields the task's value, its error,
//     or the recovered panic of the task
//   - No lost work: every task accepted before Shutdown runs to completion;
//     Submit fails with ErrStopped once Shutdown has begun
//
// Shutdown:
//
//	Shutdown marks the pool as stopping and enqueues one stop marker per worker
//	in the same critical section that Submit uses. The markers are therefore
//	queued behind every accepted task, and a worker that pops a marker has seen
//	an empty queue of real work. Shutdown returns after all workers exited.
//
// Metrics:
//
//	Each pool keeps counters and timers in a github.com/rcrowley/go-metrics
//	registry (submitted, completed, failed, queue wait, run time). Stats returns
//	a snapshot.
//
// Usage Example:
//
//	pool, err := workerpool.New(8)
//	if err != nil {
//	    return err
//	}
//	defer pool.Shutdown()
//
//	future, err := pool.Submit(func() (interface{}, error) {
//	    return compute(), nil
//	})
//	if err != nil {
//	    return err // errors.Is(err, workerpool.ErrStopped)
//	}
//	value, err := future.Wait()
package workerpool
