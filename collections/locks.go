package collections

import (
	"sync"

	"github.com/recobro/collections-engine/engine"
)

// caseLocks is the per-case exclusive lock registry. Acquisition never
// blocks: a contended lock fails fast with ErrConcurrentModification and
// the caller retries. Bulk operations therefore can never hold more than
// one case lock at a time.
type caseLocks struct {
	mu    sync.Mutex
	locks map[engine.CaseNumber]*sync.Mutex
}

func newCaseLocks() *caseLocks {
	return &caseLocks{locks: make(map[engine.CaseNumber]*sync.Mutex)}
}

// acquire returns an unlock func, or ErrConcurrentModification when the
// case is already being mutated.
func (cl *caseLocks) acquire(number engine.CaseNumber) (func(), error) {
	cl.mu.Lock()
	l, ok := cl.locks[number]
	if !ok {
		l = &sync.Mutex{}
		cl.locks[number] = l
	}
	cl.mu.Unlock()

	if !l.TryLock() {
		return nil, engine.ErrConcurrentModification
	}
	return l.Unlock, nil
}
