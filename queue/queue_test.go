package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbl8/progress/internal/demo"
	"github.com/sbl8/progress/state"
)

func TestMPSC_FIFO(t *testing.T) {
	q := NewMPSC(8)
	stream := &demo.Stream{Label: "x"}

	var pushed []state.State
	for i := 0; i < 5; i++ {
		s := demo.NewScripted(stream, state.Unbounded, "op", nil)
		pushed = append(pushed, s)
		require.NoError(t, q.Push(s))
	}

	for i := 0; i < 5; i++ {
		head := q.Peek()
		require.NotNil(t, head)
		assert.Same(t, pushed[i], head)
		q.Pop()
	}
	assert.Nil(t, q.Peek())
}

func TestMPSC_PeekDoesNotConsume(t *testing.T) {
	q := NewMPSC(4)
	stream := &demo.Stream{Label: "x"}
	s := demo.NewScripted(stream, state.Unbounded, "op", nil)
	require.NoError(t, q.Push(s))

	assert.Same(t, s, q.Peek())
	assert.Same(t, s, q.Peek())
	q.Pop()
	assert.Nil(t, q.Peek())
}

func TestMPSC_FullReturnsErrFull(t *testing.T) {
	q := NewMPSC(2) // rounds up to 2
	stream := &demo.Stream{Label: "x"}
	require.NoError(t, q.Push(demo.NewScripted(stream, state.Unbounded, "a", nil)))
	require.NoError(t, q.Push(demo.NewScripted(stream, state.Unbounded, "b", nil)))
	err := q.Push(demo.NewScripted(stream, state.Unbounded, "c", nil))
	assert.ErrorIs(t, err, ErrFull)
}

func TestMPSC_ConcurrentProducersPreserveCount(t *testing.T) {
	q := NewMPSC(4096)
	stream := &demo.Stream{Label: "x"}

	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				s := demo.NewScripted(stream, state.Unbounded, "op", nil)
				for q.Push(s) != nil {
				}
			}
		}()
	}
	wg.Wait()

	count := 0
	for q.Peek() != nil {
		q.Pop()
		count++
	}
	assert.Equal(t, producers*perProducer, count)
}

func TestLocking_FIFO(t *testing.T) {
	q := NewLocking()
	stream := &demo.Stream{Label: "x"}
	var pushed []state.State
	for i := 0; i < 3; i++ {
		s := demo.NewScripted(stream, state.Unbounded, "op", nil)
		pushed = append(pushed, s)
		require.NoError(t, q.Push(s))
	}
	for i := 0; i < 3; i++ {
		head := q.Peek()
		require.NotNil(t, head)
		assert.Same(t, pushed[i], head)
		q.Pop()
	}
	assert.Nil(t, q.Peek())
}
