// Package rwlock implements a reader-preferring readers/writer lock.
//
// Any number of readers may hold the lock at once.
// A writer holds it alone.
//
// The lock favors readers:
// a writer waits only for the reader count to reach zero,
// and new readers are admitted while a writer waits,
// so a steady stream of readers can starve a writer indefinitely.
// This differs from sync.RWMutex,
// which blocks new readers once a writer is waiting.
package rwlock

import "sync"

// RWLock is a reader-preferring readers/writer lock.
// Use New to create one.
type RWLock struct {
	mu      sync.Mutex // held for the whole of a write acquisition
	cond    *sync.Cond // signaled when readers drops to zero
	readers int
}

// New produces a new, unlocked RWLock.
func New() *RWLock {
	l := &RWLock{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Lock acquires l for writing.
// It blocks until there are no readers,
// then keeps the internal mutex until Unlock,
// which shuts out readers and other writers alike.
func (l *RWLock) Lock() {
	l.mu.Lock()
	for l.readers > 0 {
		l.cond.Wait()
	}
}

// Unlock releases a write acquisition.
func (l *RWLock) Unlock() {
	// Another writer may be parked in Wait with the reader count already at zero.
	// Nobody else would wake it.
	l.cond.Signal()
	l.mu.Unlock()
}

// RLock acquires l for reading.
// It blocks only while a writer holds the lock
// or another caller is updating the reader count.
func (l *RWLock) RLock() {
	l.mu.Lock()
	l.readers++
	l.mu.Unlock()
}

// RUnlock releases a read acquisition.
// The last reader out wakes one waiting writer.
// It panics if there is no read acquisition to release.
func (l *RWLock) RUnlock() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.readers == 0 {
		panic("rwlock: RUnlock of unlocked RWLock")
	}
	l.readers--
	if l.readers == 0 {
		l.cond.Signal()
	}
}

// Readers reports the number of current read acquisitions.
func (l *RWLock) Readers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readers
}
