// Package engine implements the progress engine: the submission
// registry, per-stream pipeline scheduler, and lifecycle controller that
// drive opaque state.State operations to completion on a single
// dedicated worker goroutine.
package engine

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/sbl8/progress/state"
	"github.com/sbl8/progress/topology"
)

// Engine ties the registry, pipeline table, and lifecycle controller
// together and runs the worker goroutine that drives them.
type Engine struct {
	opts Options

	registry *Registry
	pipeline *pipeline
	life     *lifecycle
	binder   *topology.Binder
	trace    Recorder

	log *zap.Logger

	numBounded int // worker-only, no synchronization
}

// New constructs an Engine from opts. Missing numeric fields fall back
// to DefaultOptions. If opts.AddDefaultStream is set, slot 0 is
// pre-populated with DefaultStream.
func New(opts Options) *Engine {
	opts.fillDefaults()

	e := &Engine{
		opts:     opts,
		registry: NewRegistry(opts.QueueCapacity, opts.QueueDepth, opts.ThreadMultiple),
		pipeline: newPipelineTable(opts.PipelineDepth),
		life:     newLifecycle(),
		log:      opts.Logger,
	}
	if opts.Trace {
		e.trace = NewRing(1024)
	} else {
		e.trace = discard{}
	}
	if opts.AddDefaultStream {
		e.registry.preloadDefaultStream(DefaultStream)
	}
	if opts.Topo != nil {
		e.binder = topology.NewBinder(opts.Topo, opts.Comm, opts.Logger.With(zap.Int("rank", opts.Rank)))
	}
	return e
}

// Enqueue transfers ownership of s to the engine: it is pushed onto
// s.ComputeStream()'s input queue, creating that queue on first use. If
// Options.StartOnDemand is set, Enqueue first starts the engine.
func (e *Engine) Enqueue(s state.State) error {
	return e.EnqueueWithCache(s, nil)
}

// EnqueueWithCache behaves like Enqueue but consults and updates cache
// for the stream→queue lookup, skipping the registry scan on repeat
// submissions from the same caller. cache must not be shared across
// goroutines; pass nil to always scan the registry.
func (e *Engine) EnqueueWithCache(s state.State, cache *CallerCache) error {
	if e.opts.StartOnDemand {
		e.Run()
	}
	q, err := e.registry.lookupOrCreate(s.ComputeStream(), cache)
	if err != nil {
		return err
	}
	return q.Push(s)
}

// Run starts the worker goroutine if it is not already running.
// Idempotent: a second call while the engine is already running (or
// mid-start) has no additional effect.
func (e *Engine) Run() {
	e.life.start(func() {
		go e.workerMain()
	})
}

// Stop requests the worker goroutine to finish its current pass and
// exit, then waits for it to do so. Returns a lifecycle error if called
// a second time. Callers are responsible for quiescing submissions
// before calling Stop: outstanding queued or in-pipeline operations are
// not drained or cancelled.
func (e *Engine) Stop() error {
	return e.life.stop()
}

// DumpState writes a best-effort diagnostic snapshot of the number of
// known streams, the bounded in-flight count, and every known stream's
// per-stage pipeline occupancy to w. Input queue contents are not shown. Not safe to call
// concurrently with a running engine; intended for post-mortem use
// after Stop or from within a debugger.
func (e *Engine) DumpState(w io.Writer) {
	n := e.registry.NumInputStreams()
	fmt.Fprintf(w, "progress engine: %d known streams, %d bounded in-flight\n", n, e.numBounded)
	for i := 0; i < n; i++ {
		stream := e.registry.StreamAt(i)
		row, ok := e.pipeline.existingRow(stream)
		fmt.Fprintf(w, "  stream %v:\n", stream)
		if !ok {
			fmt.Fprintf(w, "    pipeline: (not yet created)\n")
			continue
		}
		for s, seq := range row.stages {
			fmt.Fprintf(w, "    stage %d: %d entries\n", s, len(seq))
		}
	}
}

// Trace returns the engine's trace recorder: a *Ring holding the events
// recorded so far if Options.Trace was set, otherwise a recorder that
// discards every event.
func (e *Engine) Trace() Recorder {
	return e.trace
}

func (e *Engine) workerMain() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer e.life.workerExited()

	if err := e.opts.Device.SetDevice(deviceForRank(e.opts.Rank)); err != nil {
		e.log.Warn("failed to set worker goroutine's gpu device", zap.Error(err))
	}

	if e.binder != nil {
		e.binder.Init()
		if err := e.binder.Bind(); err != nil {
			e.log.Warn("failed to bind progress goroutine", zap.Error(err), zap.Int("rank", e.opts.Rank))
		}
	}

	e.life.markStarted()
	e.workerLoop()
}

// deviceForRank is the device the worker binds to at startup; ranks map
// 1:1 onto devices in the single-GPU-per-rank deployment this engine
// targets.
func deviceForRank(rank int) int { return rank }

func (e *Engine) workerLoop() {
	for !e.life.shouldStop() {
		e.admissionPass()
		e.steppingPass()
	}
}

// admissionPass implements Phase A: for every known stream, peek its
// input queue and decide whether to admit the head into stage 0.
func (e *Engine) admissionPass() {
	n := e.registry.NumInputStreams()
	for i := 0; i < n; i++ {
		q := e.registry.QueueAt(i)
		head := q.Peek()
		if head == nil {
			continue
		}

		stream := head.ComputeStream()
		if head.RunType() == state.Bounded && !e.pipeline.admitBounded(stream, e.numBounded, e.opts.ConcurrencyCap) {
			continue
		}

		if head.RunType() == state.Bounded {
			e.numBounded++
		}

		ent := &entry{s: head, startTime: time.Now()}
		e.pipeline.appendToStage0(stream, ent)
		head.Start()
		e.trace.Record(Event{Kind: EventStart, Name: head.Name(), Stream: fmt.Sprint(stream)})
		q.Pop()
	}
}

// steppingPass implements Phase B across every stream and stage.
func (e *Engine) steppingPass() {
	for stream, row := range e.pipeline.streams {
		for s := 0; s < e.pipeline.depth; s++ {
			lastStage := s == e.pipeline.depth-1
			err := stepStage(row, s, lastStage, func(ent *entry) {
				e.numBounded--
				e.trace.Record(Event{Kind: EventDone, Name: ent.s.Name(), Stream: fmt.Sprint(stream)})
			})
			if err != nil {
				e.log.Error("fatal scheduling error", zap.Error(err), zap.Any("stream", stream))
				panic(err)
			}
			if e.opts.HangCheck {
				e.checkHangs(row.stages[s])
			}
		}
	}
}

func (e *Engine) checkHangs(seq []*entry) {
	deadline := time.Duration(10+e.opts.Rank) * time.Second
	now := time.Now()
	for _, ent := range seq {
		if ent.hangReported {
			continue
		}
		if now.Sub(ent.startTime) > deadline {
			e.log.Warn("operation has been in-flight past the hang-check deadline",
				zap.String("name", ent.s.Name()), zap.String("desc", ent.s.Desc()),
				zap.Int("rank", e.opts.Rank))
			ent.hangReported = true
		}
	}
}
