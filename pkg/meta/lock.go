package meta

import "sync"

// LockRegistry hands out one process-wide mutex per table. Every storage
// engine operation on a table must run while holding that table's lock:
// exactly one in-flight operation per table at a time, no reader/writer
// distinction and no row-level locking. A caller only ever holds one
// table lock at a time, so lock ordering deadlocks cannot occur.
type LockRegistry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLockRegistry() *LockRegistry {
	return &LockRegistry{locks: make(map[string]*sync.Mutex)}
}

// TableLock returns the mutex guarding the given table, creating it on
// first use. Keys are database-qualified so same-named tables in
// different databases do not share a lock.
func (r *LockRegistry) TableLock(database, table string) *sync.Mutex {
	key := database + "/" + table

	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[key] = lock
	}
	return lock
}
