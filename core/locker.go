package core

import "sync"

// Locker serializes turns per thread id. The checkpoint store has no
// built-in locking, so concurrent turns on the same thread would race on
// the read-modify-write cycle; the graph takes the thread's lock for the
// whole turn. Entries are never evicted: the map grows with the number of
// distinct threads seen by this process, which is bounded by the working
// set of active conversations.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocker creates an empty keyed locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for id, creating it on first use, and returns the
// matching unlock function.
func (l *Locker) Lock(id string) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
