// Package queue provides a blocking, thread-safe FIFO queue used as the task
// queue of the worker pool.
//
// Features and Guarantees:
//
//   - Strict FIFO: items are popped in the order they were pushed
//   - Blocking and non-blocking pops (WaitPop, TryPop)
//   - Wake-one on Push: exactly one waiting consumer is woken per item
//   - No spurious results: WaitPop re-checks its condition under the lock, so it
//     never returns an empty result from a valid queue
//   - Invalidation: Invalidate permanently disables the queue and wakes every
//     waiter; waiters return false and never touch the payload
//
// The backing storage is a ring buffer from github.com/eapache/queue, guarded
// by a lock.Mutex. Critical sections only move items in and out of the ring.
package queue
