package worker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobLocks_SerializesSameJob(t *testing.T) {
	locks := newJobLocks()

	const goroutines = 20
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("job-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines, counter)
}

func TestJobLocks_DifferentJobsDoNotBlock(t *testing.T) {
	locks := newJobLocks()

	unlock1 := locks.Lock("job-1")
	defer unlock1()

	// Must not deadlock while job-1 is held.
	done := make(chan struct{})
	go func() {
		unlock2 := locks.Lock("job-2")
		unlock2()
		close(done)
	}()
	<-done
}

func TestJobLocks_EntriesReleasedWhenUnused(t *testing.T) {
	locks := newJobLocks()

	unlock := locks.Lock("job-1")
	unlock()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.locks)
}
