package memory

import (
	"context"
	"sync"
)

// lockTable hands out exclusive row locks keyed by "<table>/<key>".
// A lock is reentrant for its owning unit of work and is held until that
// unit of work commits or rolls back.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*rowLock
}

type rowLock struct {
	owner    uint64
	released chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{
		locks: make(map[string]*rowLock),
	}
}

// acquire blocks until owner holds the lock for name or ctx is done.
// It reports whether the lock was newly taken by this call.
func (lt *lockTable) acquire(ctx context.Context, name string, owner uint64) (bool, error) {
	for {
		lt.mu.Lock()
		lock, held := lt.locks[name]
		if !held {
			lt.locks[name] = &rowLock{
				owner:    owner,
				released: make(chan struct{}),
			}
			lt.mu.Unlock()
			return true, nil
		}
		if lock.owner == owner {
			lt.mu.Unlock()
			return false, nil
		}
		released := lock.released
		lt.mu.Unlock()

		select {
		case <-released:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

func (lt *lockTable) release(name string, owner uint64) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if lock, held := lt.locks[name]; held && lock.owner == owner {
		delete(lt.locks, name)
		close(lock.released)
	}
}

func (lt *lockTable) holder(name string) (uint64, bool) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	lock, held := lt.locks[name]
	if !held {
		return 0, false
	}
	return lock.owner, true
}

func (lt *lockTable) clear() {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	for name, lock := range lt.locks {
		delete(lt.locks, name)
		close(lock.released)
	}
}
