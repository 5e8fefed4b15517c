package lock

import "time"

// Scoped locks l and returns the matching release function.
// Use it with defer:
//
//	defer lock.Scoped(&mu)()
func Scoped(l Locker) func() {
	l.Lock()
	return func() {
		if err := l.Release(); err != nil {
			escalate("Scoped release", err)
		}
	}
}

// WithLock runs fn while holding l
func WithLock(l Locker, fn func() error) error {
	defer Scoped(l)()
	return fn()
}

// WithLockTimeout runs fn while holding l. It returns the acquisition error
// without running fn if l could not be locked within d.
func WithLockTimeout(l TimedLocker, d time.Duration, fn func() error) error {
	if err := l.LockTimeout(d); err != nil {
		return err
	}
	defer func() {
		if err := l.Release(); err != nil {
			escalate("WithLockTimeout release", err)
		}
	}()
	return fn()
}

// WithoutLock releases the held lock l for the duration of fn and locks it
// again afterwards, also when fn panics.
func WithoutLock(l Locker, fn func() error) error {
	if err := l.Release(); err != nil {
		escalate("WithoutLock release", err)
	}
	defer l.Lock()
	return fn()
}
