package engine

import (
	"sync"

	"code.hybscloud.com/atomix"

	"github.com/sbl8/progress/internal/cacheline"
	"github.com/sbl8/progress/queue"
	"github.com/sbl8/progress/state"
)

// slot is one entry of the registry's fixed-capacity table. stream is
// immutable once published; queue is created once, alongside it.
type slot struct {
	stream state.ComputeStream
	queue  queue.Queue
}

// CallerCache is the Go substitute for the per-thread stream→queue
// cache the original relies on thread-local storage for. A goroutine
// that submits repeatedly to the same engine should keep one CallerCache
// and pass it to Registry.lookupOrCreate (via Engine.EnqueueWithCache)
// on every call; it must not be shared across goroutines.
type CallerCache struct {
	byStream map[state.ComputeStream]queue.Queue
}

// NewCallerCache returns an empty cache.
func NewCallerCache() *CallerCache {
	return &CallerCache{byStream: make(map[state.ComputeStream]queue.Queue)}
}

// Registry is the submission registry: a fixed-capacity table mapping
// compute streams to their input queue, grown lazily on first
// submission for a new stream.
type Registry struct {
	slots           []slot
	numInputStreams atomix.Uint64
	_               cacheline.Pad
	addQueueMutex   sync.Mutex

	capacity       int
	queueDepth     int
	threadMultiple bool
}

// NewRegistry allocates a registry with room for capacity distinct
// streams, each backed by a queue sized to queueDepth.
func NewRegistry(capacity, queueDepth int, threadMultiple bool) *Registry {
	return &Registry{
		slots:          make([]slot, capacity),
		capacity:       capacity,
		queueDepth:     queueDepth,
		threadMultiple: threadMultiple,
	}
}

// NumInputStreams returns the number of initialized slots, observed
// with acquire ordering matching the release-store on publication.
func (r *Registry) NumInputStreams() int {
	return int(r.numInputStreams.LoadAcquire())
}

// QueueAt returns the queue for the k-th initialized slot. k must be
// less than a value previously returned by NumInputStreams.
func (r *Registry) QueueAt(k int) queue.Queue {
	return r.slots[k].queue
}

// StreamAt returns the compute stream identity for the k-th initialized
// slot.
func (r *Registry) StreamAt(k int) state.ComputeStream {
	return r.slots[k].stream
}

func (r *Registry) newQueue() queue.Queue {
	if r.threadMultiple {
		return queue.NewMPSC(r.queueDepth)
	}
	return queue.NewLocking()
}

// lookupOrCreate implements the four-step lookup path: consult the
// caller's cache, scan the published slots, fall back to the mutex to
// create a new slot, racing safely against concurrent creators.
func (r *Registry) lookupOrCreate(stream state.ComputeStream, cache *CallerCache) (queue.Queue, error) {
	if cache != nil {
		if q, ok := cache.byStream[stream]; ok {
			return q, nil
		}
	}

	k := r.NumInputStreams()
	for i := 0; i < k; i++ {
		if r.slots[i].stream == stream {
			q := r.slots[i].queue
			if cache != nil {
				cache.byStream[stream] = q
			}
			return q, nil
		}
	}

	r.addQueueMutex.Lock()
	defer r.addQueueMutex.Unlock()

	kPrime := r.NumInputStreams()
	for i := k; i < kPrime; i++ {
		if r.slots[i].stream == stream {
			q := r.slots[i].queue
			if cache != nil {
				cache.byStream[stream] = q
			}
			return q, nil
		}
	}

	if kPrime == r.capacity {
		return nil, newConfigError("too many distinct compute streams, capacity %d exceeded", r.capacity)
	}

	q := r.newQueue()
	r.slots[kPrime] = slot{stream: stream, queue: q}
	r.numInputStreams.StoreRelease(uint64(kPrime + 1))

	if cache != nil {
		cache.byStream[stream] = q
	}
	return q, nil
}

// preloadDefaultStream pre-populates slot 0 with stream, used for
// Options.AddDefaultStream. Must be called before the engine starts
// accepting submissions.
func (r *Registry) preloadDefaultStream(stream state.ComputeStream) {
	r.slots[0] = slot{stream: stream, queue: r.newQueue()}
	r.numInputStreams.StoreRelease(1)
}
