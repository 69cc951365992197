// Package progress implements the progress engine at the heart of a
// GPU-aware collective-communication library. Application goroutines
// submit asynchronous collective operations associated with a compute
// stream; a dedicated worker goroutine drives those operations through
// a multi-stage pipeline until each completes, without blocking
// submitters and without stalling unrelated streams.
//
// # Architecture Overview
//
// The progress engine consists of several cooperating packages:
//
//   - state: the opaque operation-state contract the engine consumes.
//   - queue: lock-free and mutex-guarded per-stream input queues.
//   - engine: the submission registry, pipeline scheduler, lifecycle
//     controller, and the top-level Engine type tying them together.
//   - topology: CPU-set discovery and the binder that pins the worker
//     goroutine to a core near the GPU it serves.
//   - mpi, gpudev: narrow collaborator interfaces for same-host peer
//     discovery and GPU device binding; the engine ships no concrete
//     MPI or GPU runtime.
//
// # Basic Usage
//
//	opts := engine.DefaultOptions()
//	e := engine.New(opts)
//	e.Run()
//	defer e.Stop()
//
//	if err := e.Enqueue(myCollectiveState); err != nil {
//	    log.Fatal(err)
//	}
//
// The concrete collective algorithms that implement state.State are out
// of scope for this module: the engine schedules opaque work and makes
// no decisions about what a collective actually does.
package progress
