package engine

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sbl8/progress/internal/demo"
	"github.com/sbl8/progress/state"
	"github.com/sbl8/progress/topology"
)

func newTestEngine(t *testing.T, cap int) *Engine {
	t.Helper()
	opts := DefaultOptions()
	opts.PipelineDepth = 2
	opts.ConcurrencyCap = cap
	return New(opts)
}

// Scenario A: single unbounded operation, depth-2 pipeline.
func TestScenarioA_SingleUnbounded(t *testing.T) {
	e := newTestEngine(t, 2)
	stream := demo.Stream{Label: "A"}
	u := demo.NewScripted(stream, state.Unbounded, "u", []state.Action{
		state.Cont, state.Cont, state.Advance, state.Cont, state.Complete,
	})

	require.NoError(t, e.Enqueue(u))
	e.admissionPass()
	assert.Equal(t, 1, u.Starts())

	for i := 0; i < 3; i++ {
		e.steppingPass()
	}
	row := e.pipeline.streams[stream]
	require.Len(t, row.stages[1], 1, "should have advanced to stage 1 by the third step")
	assert.Empty(t, row.stages[0])

	for !u.Completed() {
		e.steppingPass()
	}
	assert.Equal(t, 1, u.Starts(), "start must be called exactly once")
	assert.Empty(t, row.stages[0])
	assert.Empty(t, row.stages[1])
}

// Scenario B: bounded admission cap and its empty-stage-0 waiver.
func TestScenarioB_BoundedCapWaivedForFreshStreams(t *testing.T) {
	e := newTestEngine(t, 2)
	streamX, streamY, streamZ := demo.Stream{Label: "X"}, demo.Stream{Label: "Y"}, demo.Stream{Label: "Z"}
	longRun := make([]state.Action, 100)
	for i := range longRun[:99] {
		longRun[i] = state.Cont
	}
	longRun[99] = state.Complete

	b1 := demo.NewScripted(streamX, state.Bounded, "b1", longRun)
	b2 := demo.NewScripted(streamY, state.Bounded, "b2", longRun)
	b3 := demo.NewScripted(streamZ, state.Bounded, "b3", longRun)

	require.NoError(t, e.Enqueue(b1))
	require.NoError(t, e.Enqueue(b2))
	require.NoError(t, e.Enqueue(b3))

	e.admissionPass()
	assert.Equal(t, 1, b1.Starts())
	assert.Equal(t, 1, b2.Starts())
	assert.Equal(t, 1, b3.Starts(), "fresh stream's empty stage-0 waives the cap")
	assert.Equal(t, 3, e.numBounded)
}

func TestScenarioB_BoundedCapAppliesWithinSharedStream(t *testing.T) {
	e := newTestEngine(t, 2)
	streamX, streamY := demo.Stream{Label: "X"}, demo.Stream{Label: "Y"}
	b1 := demo.NewScripted(streamX, state.Bounded, "b1", []state.Action{state.Complete})
	b2 := demo.NewScripted(streamY, state.Bounded, "b2", []state.Action{state.Complete})
	b3 := demo.NewScripted(streamX, state.Bounded, "b3", []state.Action{state.Complete})

	require.NoError(t, e.Enqueue(b1))
	require.NoError(t, e.Enqueue(b2))
	e.admissionPass() // admits b1, b2; numBounded == cap == 2

	require.NoError(t, e.Enqueue(b3))
	e.admissionPass() // b3 shares X with b1; X's stage 0 is non-empty, cap reached: denied
	assert.Equal(t, 0, b3.Starts())

	e.steppingPass() // b1 and b2 both complete, numBounded drops to 0
	assert.True(t, b1.Completed())

	e.admissionPass() // now under cap: b3 admitted
	assert.Equal(t, 1, b3.Starts())
}

// Scenario C: FIFO ordering within a single stream.
func TestScenarioC_OrderingWithinAStream(t *testing.T) {
	e := newTestEngine(t, 8)
	stream := demo.Stream{Label: "X"}

	cont := func(n int) []state.Action {
		a := make([]state.Action, n+1)
		for i := 0; i < n; i++ {
			a[i] = state.Cont
		}
		a[n] = state.Complete
		return a
	}

	var order []string
	b1 := demo.NewScripted(stream, state.Unbounded, "b1", cont(10))
	b2 := demo.NewScripted(stream, state.Unbounded, "b2", cont(5))
	b1.OnStart(func() { order = append(order, "start:b1") })
	b2.OnStart(func() { order = append(order, "start:b2") })

	require.NoError(t, e.Enqueue(b1))
	require.NoError(t, e.Enqueue(b2))

	e.admissionPass()
	assert.Equal(t, 1, b1.Starts())
	assert.Equal(t, 0, b2.Starts(), "b2 must not start before b1 is admitted")

	e.admissionPass()
	assert.Equal(t, 1, b2.Starts())
	assert.Equal(t, []string{"start:b1", "start:b2"}, order)

	for !b2.Completed() {
		e.steppingPass()
	}
	assert.True(t, b1.Completed(), "b1 must complete no later than b2 given FIFO admission and b1's longer script")
}

// Scenario D: pause-and-drain preserves relative order across a
// 3-stage pipeline.
func TestScenarioD_PauseAndDrain(t *testing.T) {
	e := newTestEngine(t, 8)
	e.pipeline = newPipelineTable(3)
	stream := demo.Stream{Label: "X"}
	row := e.pipeline.rowFor(stream)

	a := demo.NewScripted(stream, state.Unbounded, "a", []state.Action{state.Cont, state.Advance})
	b := demo.NewScripted(stream, state.Unbounded, "b", []state.Action{state.Advance})
	c := demo.NewScripted(stream, state.Unbounded, "c", []state.Action{state.Cont, state.Cont})
	row.stages[0] = []*entry{{s: a}, {s: b}, {s: c}}

	// stepStage is exercised directly at stage 0 here rather than through
	// e.steppingPass: a full pass also visits stage 1 in the same call,
	// and a/b's scripts run out exactly when they arrive there, which
	// would complete them before this test gets to look at stage 1.
	require.NoError(t, stepStage(row, 0, false, nil))
	require.Len(t, row.stages[0], 3)
	assert.True(t, row.stages[0][1].pausedForAdvance, "b wanted to advance but was not at the head")
	assert.Empty(t, row.stages[1])

	require.NoError(t, stepStage(row, 0, false, nil))
	require.Len(t, row.stages[0], 1)
	assert.Equal(t, c, row.stages[0][0].s)
	require.Len(t, row.stages[1], 2)
	assert.Equal(t, a, row.stages[1][0].s, "a advanced directly as the head")
	assert.Equal(t, b, row.stages[1][1].s, "b drained in behind a, ahead of anything arriving later")
}

// Scenario E: clean shutdown and double-stop lifecycle error.
func TestScenarioE_Shutdown(t *testing.T) {
	e := newTestEngine(t, 2)
	e.Run()
	require.NoError(t, e.Stop())

	err := e.Stop()
	require.Error(t, err)
	var engErr *Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, KindLifecycleMisuse, engErr.Kind)
}

func TestScenarioE_RunIsIdempotent(t *testing.T) {
	e := newTestEngine(t, 2)
	e.Run()
	e.Run()
	require.NoError(t, e.Stop())
}

// fakeEmptyTopology simulates an empty CPU set, the topology fallback case.
type fakeEmptyTopology struct{}

func (fakeEmptyTopology) CheckVersion() error                     { return nil }
func (fakeEmptyTopology) CurrentCPUSet() (*topology.CPUSet, error) { return topology.NewCPUSet(1), nil }
func (fakeEmptyTopology) BindThread(*topology.CPUSet) error {
	return errors.New("should never be called on an empty cpuset")
}

// Scenario F: topology fallback on an empty CPU set, the engine still
// runs, binding is skipped, and exactly one diagnostic is logged.
func TestScenarioF_TopologyFallback(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	opts := DefaultOptions()
	opts.PipelineDepth = 2
	opts.Logger = zap.New(core)
	opts.Topo = fakeEmptyTopology{}

	e := New(opts)
	e.Run()
	require.NoError(t, e.Stop())

	warnings := logs.FilterMessage("could not get starting cpuset; not binding progress thread").All()
	assert.Len(t, warnings, 1)

	var buf bytes.Buffer
	e.DumpState(&buf)
	assert.Contains(t, buf.String(), "0 known streams")
}

func TestEngine_DumpStateReportsPipelineOccupancy(t *testing.T) {
	e := newTestEngine(t, 8)
	stream := demo.Stream{Label: "X"}
	op := demo.NewScripted(stream, state.Unbounded, "op", []state.Action{state.Cont})
	require.NoError(t, e.Enqueue(op))
	e.admissionPass()

	var buf bytes.Buffer
	e.DumpState(&buf)
	out := buf.String()
	assert.Contains(t, out, "1 known streams")
	assert.Contains(t, out, "stage 0: 1 entries")
}

func TestEngine_HangCheckLogsOnce(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	opts := DefaultOptions()
	opts.PipelineDepth = 1
	opts.HangCheck = true
	opts.Rank = 0
	opts.Logger = zap.New(core)
	e := New(opts)

	stream := demo.Stream{Label: "X"}
	ent := &entry{s: demo.NewScripted(stream, state.Unbounded, "op", []state.Action{state.Cont, state.Cont}),
		startTime: time.Now().Add(-20 * time.Second)}
	row := e.pipeline.rowFor(stream)
	row.stages[0] = []*entry{ent}

	e.checkHangs(row.stages[0])
	e.checkHangs(row.stages[0])

	assert.Len(t, logs.FilterMessage("operation has been in-flight past the hang-check deadline").All(), 1)
}
