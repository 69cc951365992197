// Package topology is the narrow interface the binder uses to query CPU
// locality and pin the progress goroutine, and a concrete Linux
// implementation built on golang.org/x/sys/unix. A real hwloc-like
// library would add GPU-to-CPU-set lookups for the two GPU vendors; the
// engine only ever needs the methods below, so that part stays an
// external collaborator.
package topology

// Topology is implemented by a concrete topology backend.
type Topology interface {
	// CheckVersion verifies the topology backend's runtime and
	// compile-time versions agree. Binder.Init treats a non-nil result
	// as a reason to leave the worker unbound: it logs a warning and
	// does not stop the engine.
	CheckVersion() error
	// CurrentCPUSet returns the CPU set this rank should consider
	// binding within: the GPU-local set if GPU-aware, otherwise the
	// calling thread's current affinity projected onto its NUMA node.
	CurrentCPUSet() (*CPUSet, error)
	// BindThread pins the calling OS thread to set. set is expected to
	// have already been reduced to a single CPU by the caller.
	BindThread(set *CPUSet) error
}
