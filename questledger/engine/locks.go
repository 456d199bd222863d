package engine

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// lockTable serializes event application per (participant, quest) entity
// without a global lock. Mutexes are created on first use and kept for the
// process lifetime; the key space is bounded by active entities.
type lockTable struct {
	locks *xsync.MapOf[string, *sync.Mutex]
}

func newLockTable() *lockTable {
	return &lockTable{locks: xsync.NewMapOf[string, *sync.Mutex]()}
}

// lock acquires the entity lock and returns its release func.
func (t *lockTable) lock(key string) func() {
	mu, _ := t.locks.LoadOrStore(key, &sync.Mutex{})
	mu.Lock()
	return mu.Unlock
}
