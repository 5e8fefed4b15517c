// Package lock provides the mutual-exclusion primitives used by the pools and
// queues of giggle.
//
// Components:
//
//   - Mutex: a non-recursive mutex that, unlike sync.Mutex, supports bounded
//     acquisition (LockTimeout, LockContext) and reports a release of an
//     unlocked mutex as an error instead of crashing the process.
//   - RecursiveMutex: a re-entrant mutex. Go has no goroutine identity, so the
//     holder is identified by an explicit Owner token (see NewOwner).
//   - Scoped, WithLock, WithLockTimeout, WithoutLock: block-scoped acquisition
//     helpers. Release is tied to defer, so the lock is released on every exit
//     path including panics.
//
// Failure semantics:
//
//	Acquisition failures are returned as fault errors (KindTimeout for an
//	expired LockTimeout). A failing release inside a scoped helper means the
//	primitive is corrupted; it is logged at error level and escalated as a
//	panic. It is never swallowed.
//
// Usage Example:
//
//	var mu lock.Mutex
//
//	func (p *Pool) Len() int {
//	    defer lock.Scoped(&p.mu)()
//	    return len(p.items)
//	}
//
//	err := lock.WithLockTimeout(&mu, 50*time.Millisecond, func() error {
//	    return doWork()
//	})
//	if errors.Is(err, fault.ErrTimeout) {
//	    // could not get the lock in time
//	}
package lock
