package service

import "sync"

// offeringLocks hands out one mutex per offering id. Operations on the same
// offering are serialised; different offerings never contend. Entries are
// dropped once no goroutine holds or waits for them.
type offeringLocks struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newOfferingLocks() *offeringLocks {
	return &offeringLocks{locks: make(map[string]*refMutex)}
}

// lock acquires the mutex for id and returns its release function.
func (l *offeringLocks) lock(id string) (unlock func()) {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &refMutex{}
		l.locks[id] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// size reports how many offering mutexes are live.
func (l *offeringLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
