package lock

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/giggle/lib/fault"
)

// Owner identifies the holder of a RecursiveMutex
type Owner uint64

var ownerSeq atomic.Uint64

// NewOwner returns a process-unique owner token
func NewOwner() Owner {
	return Owner(ownerSeq.Add(1))
}

// RecursiveMutex is a mutex that the same owner may lock multiple times.
// It is released once Unlock was called as often as Lock.
type RecursiveMutex struct {
	m     Mutex
	state sync.Mutex
	owner Owner
	depth int
}

// reenter increments the depth if o already holds the mutex
func (r *RecursiveMutex) reenter(o Owner) bool {
	r.state.Lock()
	defer r.state.Unlock()
	if r.depth > 0 && r.owner == o {
		r.depth++
		return true
	}
	return false
}

func (r *RecursiveMutex) acquired(o Owner) {
	r.state.Lock()
	r.owner = o
	r.depth = 1
	r.state.Unlock()
}

// Lock locks r for o, blocking while another owner holds it
func (r *RecursiveMutex) Lock(o Owner) {
	if r.reenter(o) {
		return
	}
	r.m.Lock()
	r.acquired(o)
}

// TryLock locks r for o without blocking
func (r *RecursiveMutex) TryLock(o Owner) bool {
	if r.reenter(o) {
		return true
	}
	if !r.m.TryLock() {
		return false
	}
	r.acquired(o)
	return true
}

// LockTimeout locks r for o, waiting at most d
func (r *RecursiveMutex) LockTimeout(o Owner, d time.Duration) error {
	if r.reenter(o) {
		return nil
	}
	if err := r.m.LockTimeout(d); err != nil {
		return err
	}
	r.acquired(o)
	return nil
}

// Unlock releases one level of ownership held by o
func (r *RecursiveMutex) Unlock(o Owner) error {
	r.state.Lock()
	if r.depth == 0 {
		r.state.Unlock()
		return fault.New(fault.KindSynchronizationFailure, "lock.RecursiveMutex.Unlock", "mutex is not locked")
	}
	if r.owner != o {
		r.state.Unlock()
		return fault.Newf(fault.KindSynchronizationFailure, "lock.RecursiveMutex.Unlock", "mutex held by owner %d, not %d", r.owner, o)
	}
	r.depth--
	if r.depth > 0 {
		r.state.Unlock()
		return nil
	}
	r.owner = 0
	r.state.Unlock()
	return r.m.Release()
}

// Depth returns how often the current owner holds r (0 if unlocked)
func (r *RecursiveMutex) Depth() int {
	r.state.Lock()
	defer r.state.Unlock()
	return r.depth
}

// For binds r to an owner, so it can be used with the scoped helpers
func (r *RecursiveMutex) For(o Owner) TimedLocker {
	return &ownedLock{r: r, o: o}
}

type ownedLock struct {
	r *RecursiveMutex
	o Owner
}

func (l *ownedLock) Lock()                             { l.r.Lock(l.o) }
func (l *ownedLock) Release() error                    { return l.r.Unlock(l.o) }
func (l *ownedLock) LockTimeout(d time.Duration) error { return l.r.LockTimeout(l.o, d) }
