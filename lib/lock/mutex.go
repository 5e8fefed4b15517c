package lock

import (
	"context"
	"sync"
	"time"

	"github.com/ValentinKolb/giggle/lib/fault"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("lock")

// Locker is a lock whose release can fail
type Locker interface {
	Lock()
	Release() error
}

// TimedLocker is a Locker that supports bounded acquisition
type TimedLocker interface {
	Locker
	LockTimeout(d time.Duration) error
}

// --------------------------------------------------------------------------
// Mutex
// --------------------------------------------------------------------------

// Mutex is a non-recursive mutual exclusion lock.
// The zero value is an unlocked mutex. A Mutex must not be copied after first use.
//
// Mutex implements sync.Locker, so it can back a sync.Cond.
type Mutex struct {
	once  sync.Once
	token chan struct{} // holds one element while locked
}

func (m *Mutex) init() {
	m.once.Do(func() {
		m.token = make(chan struct{}, 1)
	})
}

// Lock locks m. It blocks until the mutex is available.
func (m *Mutex) Lock() {
	m.init()
	m.token <- struct{}{}
}

// TryLock locks m if it is free and reports whether it did
func (m *Mutex) TryLock() bool {
	m.init()
	select {
	case m.token <- struct{}{}:
		return true
	default:
		return false
	}
}

// LockTimeout locks m, waiting at most d. On expiry it returns a KindTimeout error.
// A non-positive d behaves like TryLock.
func (m *Mutex) LockTimeout(d time.Duration) error {
	if d <= 0 {
		if m.TryLock() {
			return nil
		}
		return fault.New(fault.KindTimeout, "lock.LockTimeout", "mutex is held")
	}

	m.init()
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case m.token <- struct{}{}:
		return nil
	case <-timer.C:
		return fault.Newf(fault.KindTimeout, "lock.LockTimeout", "mutex not acquired within %s", d)
	}
}

// LockContext locks m or returns when ctx is done
func (m *Mutex) LockContext(ctx context.Context) error {
	m.init()
	select {
	case m.token <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fault.Wrap(fault.KindTimeout, "lock.LockContext", ctx.Err())
	}
}

// Release unlocks m. Releasing an unlocked mutex is a KindSynchronizationFailure.
func (m *Mutex) Release() error {
	m.init()
	select {
	case <-m.token:
		return nil
	default:
		return fault.New(fault.KindSynchronizationFailure, "lock.Release", "release of unlocked mutex")
	}
}

// Unlock unlocks m. Like sync.Mutex it panics if m is not locked.
func (m *Mutex) Unlock() {
	if err := m.Release(); err != nil {
		escalate("Unlock", err)
	}
}

// escalate logs a release failure and panics. A failed release means the
// primitive is corrupted and the process state can no longer be trusted.
func escalate(op string, err error) {
	Logger.Errorf("%s failed: %v", op, err)
	panic(err)
}
