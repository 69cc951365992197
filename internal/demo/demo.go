// Package demo provides opaque State implementations used to exercise
// the engine in tests and in cmd/pedemo. They are stand-ins for real
// collective algorithms, which are out of scope for the progress engine
// itself; naming follows the AllReduce / Broadcast vocabulary
// collective-communication libraries in the wild use.
package demo

import (
	"sync/atomic"

	"github.com/sbl8/progress/state"
)

// Scripted is a State whose Step sequence is fixed in advance, useful for
// asserting exact start/step/complete behavior.
type Scripted struct {
	state.Base

	stream  state.ComputeStream
	runType state.RunType
	name    string

	script []state.Action
	idx    int

	starts    int32
	completed int32

	onStart func()
	onStep  func(state.Action)
}

// NewScripted creates a state bound to stream that runs through script
// and then repeats Complete forever (the engine never calls Step again
// after Complete, so the repeat is only a safety net for misuse in
// tests).
func NewScripted(stream state.ComputeStream, rt state.RunType, name string, script []state.Action) *Scripted {
	return &Scripted{stream: stream, runType: rt, name: name, script: script}
}

func (s *Scripted) Start() {
	atomic.AddInt32(&s.starts, 1)
	if s.onStart != nil {
		s.onStart()
	}
}

func (s *Scripted) Step() state.Action {
	var a state.Action
	if s.idx < len(s.script) {
		a = s.script[s.idx]
		s.idx++
	} else {
		a = state.Complete
	}
	if a == state.Complete {
		atomic.AddInt32(&s.completed, 1)
	}
	if s.onStep != nil {
		s.onStep(a)
	}
	return a
}

func (s *Scripted) ComputeStream() state.ComputeStream { return s.stream }
func (s *Scripted) RunType() state.RunType             { return s.runType }
func (s *Scripted) Name() string                       { return s.name }
func (s *Scripted) Desc() string                       { return s.name + " (scripted demo operation)" }

// Starts reports how many times Start has been called.
func (s *Scripted) Starts() int { return int(atomic.LoadInt32(&s.starts)) }

// Completed reports whether Step has ever returned Complete.
func (s *Scripted) Completed() bool { return atomic.LoadInt32(&s.completed) > 0 }

// OnStart and OnStep install hooks tests use to observe ordering without
// adding synchronization of their own.
func (s *Scripted) OnStart(f func())          { s.onStart = f }
func (s *Scripted) OnStep(f func(state.Action)) { s.onStep = f }

// Stream is a trivial ComputeStream identity, e.g. standing in for a GPU
// stream handle in tests.
type Stream struct{ Label string }
