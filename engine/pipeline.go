package engine

import (
	"time"

	"github.com/sbl8/progress/state"
)

// entry is the engine's own bookkeeping wrapper around an in-pipeline
// state.State. The pause-for-advance flag and hang-check diagnostics
// live here, not on the state itself, since State exposes no accessors
// for them, and the engine is the sole owner of this bookkeeping.
type entry struct {
	s                state.State
	pausedForAdvance bool
	startTime        time.Time
	hangReported     bool
}

// stagedStream is one stream's pipeline: PipelineDepth ordered stage
// sequences, each a FIFO of entries by stage-entry order.
type stagedStream struct {
	stages [][]*entry
}

func newStagedStream(depth int) *stagedStream {
	return &stagedStream{stages: make([][]*entry, depth)}
}

// pipeline owns every stream's stagedStream, keyed by stream identity.
// Only the worker goroutine touches this; there is no synchronization.
type pipeline struct {
	depth   int
	streams map[state.ComputeStream]*stagedStream
}

func newPipelineTable(depth int) *pipeline {
	return &pipeline{depth: depth, streams: make(map[state.ComputeStream]*stagedStream)}
}

func (p *pipeline) rowFor(stream state.ComputeStream) *stagedStream {
	row, ok := p.streams[stream]
	if !ok {
		row = newStagedStream(p.depth)
		p.streams[stream] = row
	}
	return row
}

// existingRow returns the row for stream without creating one, and
// whether it exists, used by the admission waiver check, which must
// distinguish "no pipeline yet" from "pipeline with an empty stage 0".
func (p *pipeline) existingRow(stream state.ComputeStream) (*stagedStream, bool) {
	row, ok := p.streams[stream]
	return row, ok
}

// admitBounded reports whether a bounded head-of-queue operation on
// stream may be admitted given numBounded bounded operations currently
// anywhere in any pipeline.
func (p *pipeline) admitBounded(stream state.ComputeStream, numBounded, concurrencyCap int) bool {
	if numBounded < concurrencyCap {
		return true
	}
	row, exists := p.existingRow(stream)
	if !exists {
		return true
	}
	return len(row.stages[0]) == 0
}

// appendToStage0 adds e to the head of stream's pipeline, creating the
// row if needed.
func (p *pipeline) appendToStage0(stream state.ComputeStream, e *entry) {
	row := p.rowFor(stream)
	row.stages[0] = append(row.stages[0], e)
}

// removeAt removes the entry at position i of stage, preserving order
// of the remaining entries.
func removeAt(stage []*entry, i int) []*entry {
	return append(stage[:i], stage[i+1:]...)
}

// stepStage runs the forward pass and drain pass for one stage of one
// stream's pipeline, per the scheduler's two-pass rule: an operation
// only moves to stage+1 once everything ahead of it at stage has
// itself advanced or completed. onBoundedComplete is invoked for each
// bounded entry that completes at this stage.
func stepStage(row *stagedStream, stage int, lastStage bool, onBoundedComplete func(*entry)) error {
	seq := row.stages[stage]

	i := 0
	for i < len(seq) {
		e := seq[i]
		if e.pausedForAdvance {
			i++
			continue
		}

		switch action := e.s.Step(); action {
		case state.Cont:
			i++
		case state.Advance:
			if lastStage {
				return newConfigError("operation %q attempted to advance past the last pipeline stage", e.s.Name())
			}
			if i == 0 {
				seq = removeAt(seq, 0)
				row.stages[stage+1] = append(row.stages[stage+1], e)
				// i stays 0: the new head shifted into this position.
			} else {
				e.pausedForAdvance = true
				i++
			}
		case state.Complete:
			if e.s.RunType() == state.Bounded && onBoundedComplete != nil {
				onBoundedComplete(e)
			}
			seq = removeAt(seq, i)
			// i stays put: the next entry shifted into this position.
		default:
			return newConfigError("operation %q returned unknown step action %v", e.s.Name(), action)
		}
	}
	row.stages[stage] = seq

	// Drain pass: entries at the head that were paused earlier in this
	// pass (or a previous one) move up now that nothing ahead of them is
	// blocking.
	seq = row.stages[stage]
	for len(seq) > 0 && seq[0].pausedForAdvance {
		e := seq[0]
		e.pausedForAdvance = false
		seq = seq[1:]
		row.stages[stage+1] = append(row.stages[stage+1], e)
	}
	row.stages[stage] = seq

	return nil
}
