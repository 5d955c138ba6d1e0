package linkage

import (
	"sync"

	"github.com/jward/linkage/internal/store"
)

// job is one project's unit of work within a stage.
type job struct {
	ref     string
	project *store.Project
}

// WorkQueue hands out the jobs of one stage to workers, each exactly once,
// in the order they were queued.
type WorkQueue struct {
	mu   sync.Mutex
	jobs []*job
	next int
}

// newWorkQueue queues jobs in order; the slice is not copied.
func newWorkQueue(jobs []*job) *WorkQueue {
	return &WorkQueue{jobs: jobs}
}

// Next returns the next job, or false once the queue is drained.
func (q *WorkQueue) Next() (*job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.next >= len(q.jobs) {
		return nil, false
	}
	j := q.jobs[q.next]
	q.next++
	return j, true
}

// Remaining returns the number of jobs not yet handed out.
func (q *WorkQueue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs) - q.next
}
