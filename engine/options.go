package engine

import (
	"go.uber.org/zap"

	"github.com/sbl8/progress/gpudev"
	"github.com/sbl8/progress/mpi"
	"github.com/sbl8/progress/state"
	"github.com/sbl8/progress/topology"
)

// Options configures an Engine at construction time. Each field below
// corresponds to one of the original library's compile-time toggles;
// Go has no macros, so they become ordinary struct fields checked at
// runtime.
type Options struct {
	// StartOnDemand, if set, makes the first Enqueue call transition the
	// engine into running instead of requiring an explicit Run.
	StartOnDemand bool
	// AddDefaultStream, if set, pre-populates registry slot 0 with
	// DefaultStream at construction time.
	AddDefaultStream bool
	// ThreadMultiple, if set, allows concurrent callers of Enqueue. If
	// clear, the engine uses a simpler single-producer queue
	// implementation and Enqueue must only be called from one goroutine.
	ThreadMultiple bool
	// HangCheck, if set, makes the worker log a warning the first time it
	// notices a state has been in-flight longer than 10+Rank seconds.
	HangCheck bool
	// Trace, if set, records a start event for every admitted operation
	// and a done event for every completed bounded operation to the
	// engine's Ring recorder. Completions of unbounded operations are
	// not recorded.
	Trace bool

	// QueueCapacity bounds the number of distinct compute streams the
	// registry can track. Exceeding it is a configuration error.
	QueueCapacity int
	// PipelineDepth is the number of stages in each stream's pipeline.
	// Advancing past PipelineDepth-1 is a configuration error.
	PipelineDepth int
	// ConcurrencyCap bounds the number of bounded operations admitted to
	// pipelines at once, subject to the waiver rules in the scheduler.
	ConcurrencyCap int
	// QueueDepth is the capacity of each per-stream input queue.
	QueueDepth int
	// Rank is this process's rank, used in hang-check timeouts and log
	// fields.
	Rank int

	// Logger receives structured diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger
	// Device is the GPU runtime collaborator. Defaults to gpudev.Noop{}.
	Device gpudev.Runtime
	// Topo is the topology collaborator used by the binder. Defaults to
	// nil, which leaves binding disabled; set it to topology.NewLinux()
	// on Linux hosts that want the worker goroutine pinned to a core.
	Topo topology.Topology
	// Comm is the local-communicator collaborator used by the binder.
	// Defaults to mpi.Loopback{}.
	Comm mpi.Communicator
}

// DefaultStream is the stand-in compute stream handle used for
// AddDefaultStream and by callers with no GPU stream of their own.
var DefaultStream state.ComputeStream = defaultStream{}

type defaultStream struct{}

// DefaultOptions returns an Options populated with conservative
// defaults: single engine-owned device, loopback communicator, no
// topology binding, and modest fixed-size tables.
func DefaultOptions() Options {
	return Options{
		StartOnDemand:    false,
		AddDefaultStream: false,
		ThreadMultiple:   true,
		HangCheck:        false,
		Trace:            false,
		QueueCapacity:    64,
		PipelineDepth:    4,
		ConcurrencyCap:   8,
		QueueDepth:       256,
		Rank:             0,
		Logger:           zap.NewNop(),
		Device:           gpudev.Noop{},
		Topo:             nil,
		Comm:             mpi.Loopback{},
	}
}

func (o *Options) fillDefaults() {
	defaults := DefaultOptions()
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = defaults.QueueCapacity
	}
	if o.PipelineDepth <= 0 {
		o.PipelineDepth = defaults.PipelineDepth
	}
	if o.ConcurrencyCap <= 0 {
		o.ConcurrencyCap = defaults.ConcurrencyCap
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = defaults.QueueDepth
	}
	if o.Logger == nil {
		o.Logger = defaults.Logger
	}
	if o.Device == nil {
		o.Device = defaults.Device
	}
	if o.Comm == nil {
		o.Comm = defaults.Comm
	}
}
