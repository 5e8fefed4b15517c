package queue

import (
	"sync"

	"github.com/ValentinKolb/giggle/lib/lock"
	"github.com/eapache/queue"
)

// Queue is a blocking FIFO queue. Create it with New.
type Queue[T any] struct {
	mu    lock.Mutex
	cond  *sync.Cond
	items *queue.Queue
	valid bool
}

// New creates an empty, valid queue
func New[T any]() *Queue[T] {
	q := &Queue[T]{
		items: queue.New(),
		valid: true,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an item and wakes one waiter.
// It returns false (and drops the item) if the queue was invalidated.
func (q *Queue[T]) Push(item T) bool {
	defer lock.Scoped(&q.mu)()

	if !q.valid {
		return false
	}
	q.items.Add(item)
	q.cond.Signal()
	return true
}

// TryPop pops the first item without blocking.
// It returns false if the queue is empty or invalid.
func (q *Queue[T]) TryPop() (T, bool) {
	defer lock.Scoped(&q.mu)()

	var zero T
	if !q.valid || q.items.Length() == 0 {
		return zero, false
	}
	// a queued nil interface value comes back as an untyped nil
	v, _ := q.items.Remove().(T)
	return v, true
}

// WaitPop pops the first item, blocking until one is available.
// It returns false only if the queue is (or becomes) invalid.
func (q *Queue[T]) WaitPop() (T, bool) {
	defer lock.Scoped(&q.mu)()

	for q.valid && q.items.Length() == 0 {
		q.cond.Wait()
	}

	var zero T
	if !q.valid {
		return zero, false
	}
	// a queued nil interface value comes back as an untyped nil
	v, _ := q.items.Remove().(T)
	return v, true
}

// Clear drops all items and wakes all waiters. The queue stays valid, so
// woken waiters go back to waiting.
func (q *Queue[T]) Clear() {
	defer lock.Scoped(&q.mu)()

	q.items = queue.New()
	q.cond.Broadcast()
}

// Invalidate permanently disables the queue and wakes all waiters.
// Queued items are dropped.
func (q *Queue[T]) Invalidate() {
	defer lock.Scoped(&q.mu)()

	q.valid = false
	q.items = queue.New()
	q.cond.Broadcast()
}

// Valid reports whether the queue was not invalidated yet
func (q *Queue[T]) Valid() bool {
	defer lock.Scoped(&q.mu)()
	return q.valid
}

// Len returns the number of queued items
func (q *Queue[T]) Len() int {
	defer lock.Scoped(&q.mu)()
	return q.items.Length()
}

// Empty reports whether the queue holds no items
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}
