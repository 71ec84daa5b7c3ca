package server

import (
	"sync"

	"github.com/crystal-mush/tinymud/pkg/gamedb"
)

// refLocks hands out one mutex per object. An entry lives only while
// someone holds or waits for it.
type refLocks struct {
	mu    sync.Mutex
	locks map[gamedb.DBRef]*refLock
}

type refLock struct {
	sync.Mutex
	users int
}

func newRefLocks() *refLocks {
	return &refLocks{locks: make(map[gamedb.DBRef]*refLock)}
}

// lock blocks until ref is free and returns the matching unlock.
func (l *refLocks) lock(ref gamedb.DBRef) (unlock func()) {
	l.mu.Lock()
	rl, ok := l.locks[ref]
	if !ok {
		rl = &refLock{}
		l.locks[ref] = rl
	}
	rl.users++
	l.mu.Unlock()

	rl.Lock()
	return func() {
		rl.Unlock()
		l.mu.Lock()
		if rl.users--; rl.users == 0 {
			delete(l.locks, ref)
		}
		l.mu.Unlock()
	}
}

// held reports how many objects are locked or waited on.
func (l *refLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
