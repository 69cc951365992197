package topology

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sbl8/progress/mpi"
)

// Binder implements the progress goroutine's CPU-pinning policy: find
// a starting CPU set, agree with same-host peers on who
// gets which core within a shared set, and pin to exactly one core.
// The engine calls Init and then Bind from the progress goroutine each
// time that goroutine starts.
//
// Init reports no errors: a failure at any of its steps disables
// binding for this rank and is logged. Bind returns an error only when
// the final BindThread call fails; the engine logs that error and keeps
// running unbound. This mirrors the
// original's "not binding progress thread" diagnostics: a progress
// engine that can't bind should still make progress, just without the
// affinity benefit.
type Binder struct {
	topo Topology
	comm mpi.Communicator
	log  *zap.Logger

	coreToBind int // -1 means disabled
}

// NewBinder constructs a Binder. log may be nil, in which case a no-op
// logger is used.
func NewBinder(topo Topology, comm mpi.Communicator, log *zap.Logger) *Binder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Binder{topo: topo, comm: comm, log: log, coreToBind: -1}
}

// Init computes which core this rank should bind to, or disables
// binding for this rank if anything along the way is unusable. It is
// safe to call from any goroutine; it does not itself bind anything.
func (b *Binder) Init() {
	b.coreToBind = -1

	if err := b.topo.CheckVersion(); err != nil {
		b.log.Warn("topology version check failed; not binding progress thread", zap.Error(err))
		return
	}

	cpuset, err := b.topo.CurrentCPUSet()
	if err != nil || cpuset.IsZero() {
		b.log.Warn("could not get starting cpuset; not binding progress thread", zap.Error(err))
		return
	}

	peers, err := b.comm.AllgatherBitmaps(cpuset.ToWords())
	if err != nil {
		b.log.Warn("could not exchange cpusets with local peers; not binding progress thread", zap.Error(err))
		return
	}

	offset := localOffset(peers, b.comm.LocalRank())

	numCores := cpuset.NumCores()
	if numCores == 0 {
		b.log.Warn("could not get cores for cpuset; not binding progress thread")
		return
	}
	if offset >= numCores {
		b.log.Warn("not enough cores for peers sharing a cpuset; not binding progress thread",
			zap.Int("offset", offset), zap.Int("num_cores", numCores))
		return
	}

	b.coreToBind = numCores - offset - 1
}

// Bind pins the calling OS thread (via runtime.LockOSThread, the
// caller's responsibility) to the core selected by Init. It is a no-op
// if Init disabled binding or was never called.
func (b *Binder) Bind() error {
	if b.coreToBind < 0 {
		b.log.Debug("progress engine binding not initialized; skipping bind")
		return nil
	}

	cpuset, err := b.topo.CurrentCPUSet()
	if err != nil || cpuset.IsZero() {
		b.log.Warn("could not get starting cpuset; not binding progress thread", zap.Error(err))
		return nil
	}

	core, ok := cpuset.NthCore(b.coreToBind)
	if !ok {
		b.log.Warn("could not find core to bind to; not binding progress thread",
			zap.Int("core_to_bind", b.coreToBind))
		return nil
	}

	target := NewCPUSet(core + 1)
	target.Set(core)
	target = target.Singlify()

	if err := b.topo.BindThread(target); err != nil {
		return fmt.Errorf("topology: failed to bind progress thread: %w", err)
	}
	return nil
}

// localOffset reports how many of the local peers before localRank in
// rank order share an identical bitmap with it, its position in the
// queue of same-cpuset peers, used to fan same-cpuset ranks out across
// distinct cores instead of piling them onto the same one.
func localOffset(bitmaps [][]uint64, localRank int) int {
	offset := 0
	mine := bitmaps[localRank]
	for i := 0; i < localRank; i++ {
		if bitmapsEqual(bitmaps[i], mine) {
			offset++
		}
	}
	return offset
}

func bitmapsEqual(a, b []uint64) bool {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var x, y uint64
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			return false
		}
	}
	return true
}
