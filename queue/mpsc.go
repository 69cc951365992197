package queue

import (
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"github.com/sbl8/progress/internal/cacheline"
	"github.com/sbl8/progress/state"
)

// emptyFlag marks a slot as available for a producer to claim.
// claimFlag marks a slot as claimed by a producer that has not yet
// published its payload. Round numbers are masked to the remaining 62
// bits, so the three states never collide.
const (
	emptyFlag uint64 = 1 << 63
	claimFlag uint64 = 1 << 62
	roundMask uint64 = claimFlag - 1
)

// MPSC is a lock-free multi-producer / single-consumer ring of state
// values. Producers claim a slot with a round-based CAS loop on flags,
// then publish a pointer into payload; the single consumer reads
// sequentially and never contends with producers on the head counter.
//
// flags carries only synchronization state, never the payload itself:
// an earlier revision packed the boxed state's address into the flag
// slot as a uintptr, which does not keep the Go garbage collector from
// reclaiming it between Push and the consumer's Peek. payload is a
// plain []unsafe.Pointer, which the collector does scan, so the boxed
// state stays reachable from the moment Push stores it until Pop clears
// the slot.
type MPSC struct {
	_        cacheline.Pad
	head     atomix.Uint64
	_        cacheline.Pad
	tail     atomix.Uint64
	_        cacheline.Pad
	flags    []atomix.Uint64
	payload  []unsafe.Pointer
	mask     uint64
	capacity uint64
	order    uint64
}

// NewMPSC creates a lock-free input queue with room for at least
// capacity pending states; capacity is rounded up to the next power of
// two.
func NewMPSC(capacity int) *MPSC {
	n := uint64(roundToPow2(capacity))
	order := uint64(0)
	for (uint64(1) << order) < n {
		order++
	}
	q := &MPSC{
		flags:    make([]atomix.Uint64, n),
		payload:  make([]unsafe.Pointer, n),
		mask:     n - 1,
		capacity: n,
		order:    order,
	}
	for i := range q.flags {
		q.flags[i].StoreRelaxed(emptyFlag)
	}
	return q
}

// Push implements Queue.
func (q *MPSC) Push(s state.State) error {
	ptr := boxPtr(s)
	sw := spin.Wait{}
	for {
		tail := q.tail.LoadAcquire()
		head := q.head.LoadAcquire()
		if tail >= head+q.capacity {
			return ErrFull
		}

		idx := tail & q.mask
		round := (tail >> q.order) & roundMask
		expected := emptyFlag | round
		claimed := claimFlag | round

		if q.flags[idx].CompareAndSwapAcqRel(expected, claimed) {
			q.payload[idx] = ptr
			q.flags[idx].StoreRelease(round)
			q.tail.CompareAndSwapAcqRel(tail, tail+1)
			return nil
		}
		q.tail.CompareAndSwapAcqRel(tail, tail+1)
		sw.Once()
	}
}

// Peek implements Queue.
func (q *MPSC) Peek() state.State {
	head := q.head.LoadRelaxed()
	tail := q.tail.LoadAcquire()
	if head >= tail {
		return nil
	}
	idx := head & q.mask
	round := (head >> q.order) & roundMask
	flag := q.flags[idx].LoadAcquire()
	if flag != round {
		// Either still empty for this round or claimed but not yet
		// published; treat as empty rather than spin here, the engine
		// will see it on the next pass.
		return nil
	}
	return unboxPtr(q.payload[idx])
}

// Pop implements Queue. Must follow a Peek that observed the same head.
func (q *MPSC) Pop() {
	head := q.head.LoadRelaxed()
	idx := head & q.mask
	q.payload[idx] = nil
	nextRound := ((head >> q.order) + 1) & roundMask
	q.flags[idx].StoreRelease(emptyFlag | nextRound)
	q.head.StoreRelease(head + 1)
}

// Cap returns the queue's slot capacity after rounding.
func (q *MPSC) Cap() int {
	return int(q.capacity)
}
