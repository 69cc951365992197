package queue

import (
	"sync"

	"github.com/sbl8/progress/state"
)

// Locking is a mutex-guarded FIFO satisfying the same Queue contract as
// MPSC. It is used when Options.ThreadMultiple is false: a single
// submitter goroutine per stream means there is no producer contention
// to design around, and a slice-backed FIFO is simpler to reason about
// under test.
type Locking struct {
	mu   sync.Mutex
	data []state.State
}

// NewLocking creates a mutex-guarded input queue.
func NewLocking() *Locking {
	return &Locking{}
}

// Push implements Queue.
func (q *Locking) Push(s state.State) error {
	q.mu.Lock()
	q.data = append(q.data, s)
	q.mu.Unlock()
	return nil
}

// Peek implements Queue.
func (q *Locking) Peek() state.State {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	return q.data[0]
}

// Pop implements Queue.
func (q *Locking) Pop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return
	}
	q.data = q.data[1:]
}
