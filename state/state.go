// Package state defines the operation-state contract the progress engine
// consumes. The engine has no knowledge of what a collective actually
// does; it only drives any value implementing [State] through Start/Step
// until Step reports completion.
package state

import "fmt"

// ComputeStream is an opaque ordering domain, typically a GPU stream
// handle. Equality is by identity, so implementations should pass the
// same value (e.g. a pointer or a small handle struct) for every
// operation that must serialize against one another.
type ComputeStream interface{}

// RunType reports whether an operation counts against the engine's
// global concurrency cap.
type RunType int

const (
	// Unbounded operations are always admitted to the pipeline.
	Unbounded RunType = iota
	// Bounded operations count against Options.ConcurrencyCap.
	Bounded
)

func (t RunType) String() string {
	switch t {
	case Bounded:
		return "bounded"
	case Unbounded:
		return "unbounded"
	default:
		return fmt.Sprintf("RunType(%d)", int(t))
	}
}

// Action is the result of a Step call.
type Action int

const (
	// Cont leaves the operation in place at its current stage.
	Cont Action = iota
	// Advance moves the operation to the next pipeline stage, subject to
	// per-stage ordering: an operation that is not at the head of its
	// stage is paused by the engine and moves only once every entry
	// ahead of it has advanced or completed.
	Advance
	// Complete tells the engine the operation is finished; the engine
	// destroys its reference to the state and never calls Step again.
	Complete
)

func (a Action) String() string {
	switch a {
	case Cont:
		return "cont"
	case Advance:
		return "advance"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// State is implemented by any concrete collective operation that plugs
// into the progress engine. Start is called exactly once, when the state
// first enters stage 0. Step is called once per scheduler pass at
// whichever stage the state currently occupies; since a pass visits
// stages in order, an Advance can make a state eligible to be stepped
// again at its new stage later in the same pass. Step must never block:
// a blocking Step stalls every stream, not just the one the state
// belongs to.
type State interface {
	// Start begins the operation. May touch the GPU runtime; runs on the
	// progress goroutine, which has already set its device.
	Start()
	// Step advances the operation's internal state machine by one
	// cooperative increment and reports what the engine should do next.
	Step() Action
	// ComputeStream reports the ordering domain this operation belongs
	// to. Must be stable for the lifetime of the operation.
	ComputeStream() ComputeStream
	// RunType reports whether this operation counts against the
	// concurrency cap. Must be stable for the lifetime of the operation.
	RunType() RunType
	// Name is a short, human-readable operation kind, e.g. "allreduce".
	Name() string
	// Desc is a longer diagnostic description, used by the engine's
	// hang-check warning.
	Desc() string
}

// Base is a convenience embed for concrete State implementations that
// want the same bookkeeping fields the engine tracks internally for
// every in-pipeline operation (pause-for-advance, start time, hang
// reporting). The engine itself keeps its authoritative copies in its
// own per-entry bookkeeping rather than reaching through the State
// interface, since State deliberately exposes no accessors for them;
// Base exists so an implementation's own diagnostics (e.g. Desc) can
// mirror the same shape without duplicating field names.
type Base struct {
	PausedForAdvance bool
	StartTime        int64
	HangReported     bool
}
