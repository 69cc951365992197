// Package queue implements the progress engine's per-stream input
// queues: multi-producer / single-consumer FIFOs of pending operation
// states. Two implementations satisfy the same [Queue] contract:
// [NewMPSC], a lock-free ring built on the same code.hybscloud.com/atomix
// and code.hybscloud.com/spin primitives that back
// github.com/hayabusa-cloud/lfq's queues, and [NewLocking], a
// mutex-guarded fallback for single-producer configurations where
// deterministic ordering under test matters more than raw throughput.
//
// Neither implementation exposes plain Dequeue: the scheduler's
// admission phase must be able to look at the head of a stream's queue
// without committing to removing it, since a bounded operation may be
// denied admission on this pass and must still be there on the next one.
package queue

import (
	"errors"
	"unsafe"

	"github.com/sbl8/progress/state"
)

// ErrFull is returned by Push when the queue has no room for another
// element. The engine's queues are sized generously (see
// Options.QueueDepth). Push returns ErrFull at once, without retrying,
// and Engine.Enqueue passes it back to its caller unchanged.
var ErrFull = errors.New("queue: would block, queue is full")

// Queue is the contract the pipeline scheduler and the submission
// registry depend on. Push may be called by any number of goroutines;
// Peek and Pop are for the exclusive use of the single worker goroutine
// that owns the engine.
type Queue interface {
	// Push enqueues s. Safe for concurrent use by multiple producers.
	Push(s state.State) error
	// Peek returns the state at the head of the queue without removing
	// it, or nil if the queue is empty.
	Peek() state.State
	// Pop removes the head element. Must only be called immediately
	// after a Peek that observed a non-nil head; behavior is undefined
	// otherwise.
	Pop()
}

// box indirects a state.State behind a single pointer, the payload
// MPSC stores in its GC-visible slots. A state.State is a two-word
// interface value, too wide for one pointer-sized slot on its own.
type box struct {
	s state.State
}

func boxPtr(s state.State) unsafe.Pointer {
	return unsafe.Pointer(&box{s: s})
}

func unboxPtr(p unsafe.Pointer) state.State {
	return (*box)(p).s
}

func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
