// Package gpudev is the narrow interface the progress engine uses to
// talk to a GPU runtime. The engine only ever needs to read and pin the
// "current device" for its worker goroutine; everything else about the
// GPU (streams, kernels, completion queries) lives inside the opaque
// state.State implementations the engine schedules and is out of scope
// here.
package gpudev

// Runtime is implemented by a concrete GPU binding (CUDA, ROCm, ...).
// The progress engine is compiled against this interface only; no
// concrete GPU runtime ships in this module.
type Runtime interface {
	// CurrentDevice returns the device bound to the calling goroutine.
	CurrentDevice() (int, error)
	// SetDevice binds the calling goroutine to device id.
	SetDevice(id int) error
}

// Noop is a Runtime that has exactly one device, 0, and never fails. It
// is the default when no real GPU binding is wired in: a CPU-only
// embedding of the engine, or a unit test.
type Noop struct{}

func (Noop) CurrentDevice() (int, error) { return 0, nil }
func (Noop) SetDevice(int) error         { return nil }
