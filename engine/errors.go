package engine

import "fmt"

// Kind classifies engine errors by cause.
type Kind int

const (
	// KindConfig covers too-many-streams, advance-past-last-stage, and
	// unknown action codes. All fatal. A topology-version mismatch does
	// not produce an Error; the binder logs it and leaves the worker
	// unbound.
	KindConfig Kind = iota
	// KindLifecycleMisuse covers calling Stop twice.
	KindLifecycleMisuse
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindLifecycleMisuse:
		return "lifecycle-misuse"
	default:
		return "unknown"
	}
}

// Error is returned by configuration and lifecycle-misuse failures. Both
// are programming errors: they are returned from the API call where
// detectable (e.g. Stop, the capacity check in Enqueue) and, when
// detected from inside the worker goroutine where there is no caller to
// return to (an unknown Action, an advance past the last stage), are
// instead delivered to panic, see Engine.workerLoop.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("progress engine: %s: %s", e.Kind, e.Msg)
}

func newConfigError(format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Msg: fmt.Sprintf(format, args...)}
}

func newLifecycleError(format string, args ...any) *Error {
	return &Error{Kind: KindLifecycleMisuse, Msg: fmt.Sprintf(format, args...)}
}
