package worker

import "sync"

// jobLocks serializes all read-then-write operations on a single job.
// Operations on different jobs proceed fully in parallel. Entries are
// refcounted so the map does not grow with every job ever processed.
type jobLocks struct {
	mu    sync.Mutex
	locks map[string]*jobLock
}

type jobLock struct {
	mu   sync.Mutex
	refs int
}

func newJobLocks() *jobLocks {
	return &jobLocks{
		locks: make(map[string]*jobLock),
	}
}

// Lock acquires the exclusive lock for a job id and returns the
// matching unlock function.
func (l *jobLocks) Lock(jobID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[jobID]
	if !ok {
		entry = &jobLock{}
		l.locks[jobID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, jobID)
		}
		l.mu.Unlock()
	}
}
